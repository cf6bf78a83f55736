package handler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"stride/internal/oauth/models"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
)

const maxFormBytes = 64 << 10

var errMalformedBasic = dErrors.New(dErrors.CodeInvalidClient, "client authentication failed")

// readParams returns the request parameters from either a urlencoded form or
// a flat JSON object of strings.
func readParams(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid JSON body")
		}
		values := url.Values{}
		for key, v := range raw {
			switch val := v.(type) {
			case string:
				values.Set(key, val)
			case bool, float64:
				values.Set(key, fmt.Sprint(val))
			case nil:
			default:
				return nil, dErrors.New(dErrors.CodeInvalidRequest, "parameter "+key+" must be a string")
			}
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "invalid form body")
	}
	return r.PostForm, nil
}

// basicCredentials decodes an HTTP Basic client authentication header. Both
// halves are form-urlencoded before base64 encoding, so they are unescaped
// here. A missing header is not an error; a malformed one is.
func basicCredentials(r *http.Request) (*models.ClientCredentials, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	scheme, _, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Basic") {
		return nil, nil
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, errMalformedBasic
	}
	clientID, err := url.QueryUnescape(user)
	if err != nil {
		return nil, errMalformedBasic
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return nil, errMalformedBasic
	}
	return &models.ClientCredentials{ClientID: clientID, ClientSecret: secret}, nil
}

// bodyCredentials returns the client credentials posted in the body, or nil
// when no client_id was sent.
func bodyCredentials(params url.Values) *models.ClientCredentials {
	clientID := params.Get("client_id")
	if clientID == "" {
		return nil
	}
	return &models.ClientCredentials{
		ClientID:     clientID,
		ClientSecret: params.Get("client_secret"),
	}
}

func tokenRequestFrom(params url.Values, basic *models.ClientCredentials) models.TokenRequest {
	req := models.TokenRequest{
		GrantType:   params.Get("grant_type"),
		Code:        params.Get("code"),
		RedirectURI: params.Get("redirect_uri"),
		Username:    params.Get("username"),
		Password:    params.Get("password"),
		Basic:       basic,
		Body:        bodyCredentials(params),
	}
	req.Normalize()
	return req
}

// decisionFrom reads the athlete's decision. A cancel parameter, as sent by a
// dedicated cancel button, always denies.
func decisionFrom(params url.Values) (id.TransactionID, bool, error) {
	txnID, err := id.ParseTransactionID(strings.TrimSpace(params.Get("transaction_id")))
	if err != nil {
		return id.TransactionID{}, false, dErrors.New(dErrors.CodeInvalidRequest, "transaction_id is required")
	}
	if params.Has("cancel") {
		return txnID, false, nil
	}
	switch strings.ToLower(strings.TrimSpace(params.Get("decision"))) {
	case "allow", "approve", "true":
		return txnID, true, nil
	case "deny", "":
		return txnID, false, nil
	default:
		return id.TransactionID{}, false, dErrors.New(dErrors.CodeInvalidRequest, "decision must be allow or deny")
	}
}

// safeReturnTo accepts only same-origin relative paths.
func safeReturnTo(raw string) (string, bool) {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false
	}
	return raw, true
}
