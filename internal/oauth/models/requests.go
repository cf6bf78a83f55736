package models

import (
	"strings"

	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	s "stride/pkg/platform/strings"
)

type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantPassword          GrantType = "password"
	GrantClientCredentials GrantType = "client_credentials"
)

// ClientCredentials are the raw client_id/client_secret pair as presented.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// TokenRequest carries everything the token endpoint received. At most one
// of Basic and Body is used; Basic wins when both are present.
type TokenRequest struct {
	GrantType   string
	Code        string
	RedirectURI string
	Username    string
	Password    string

	Basic *ClientCredentials
	Body  *ClientCredentials
}

// Normalize trims whitespace from protocol fields. Secrets are left as sent.
func (r *TokenRequest) Normalize() {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.Code = strings.TrimSpace(r.Code)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
	r.Username = strings.TrimSpace(r.Username)
}

type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	State       string
	AthleteID   id.AthleteID
	SessionID   id.SessionID
}

// AuthorizeResult is what the decision surface needs to render.
type AuthorizeResult struct {
	TransactionID id.TransactionID
	Athlete       *Athlete
	Client        *Client
}

type DecisionRequest struct {
	TransactionID id.TransactionID
	AthleteID     id.AthleteID
	SessionID     id.SessionID
	Approved      bool
}

// DecisionResult carries the fully built redirect back to the client.
type DecisionResult struct {
	RedirectURI string
	Approved    bool
}

type RegisterClientRequest struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
}

func (r *RegisterClientRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.RedirectURIs = s.DedupeAndTrim(r.RedirectURIs)

	if r.ClientID == "" {
		return dErrors.New(dErrors.CodeValidation, "client_id is required")
	}
	if len(r.ClientID) > 255 {
		return dErrors.New(dErrors.CodeValidation, "client_id must be at most 255 characters")
	}
	if len(r.ClientSecret) > 72 {
		return dErrors.New(dErrors.CodeValidation, "client_secret must be at most 72 bytes")
	}
	for _, uri := range r.RedirectURIs {
		if !IsAbsoluteURL(uri) {
			return dErrors.New(dErrors.CodeValidation, "redirect_uris must be absolute URLs without fragments")
		}
	}
	return nil
}

// RegisterClientResult returns the plaintext secret exactly once.
type RegisterClientResult struct {
	Client *Client
	Secret string
}
