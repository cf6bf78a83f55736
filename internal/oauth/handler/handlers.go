package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"stride/internal/oauth/models"
	"stride/internal/platform/middleware"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/httputil"
	"stride/pkg/requestcontext"
)

type loginResponse struct {
	AthleteID id.AthleteID `json:"athlete_id"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// loginFormResponse describes the form a client renders to log an athlete in.
type loginFormResponse struct {
	Action   string   `json:"action"`
	Method   string   `json:"method"`
	Fields   []string `json:"fields"`
	ReturnTo string   `json:"return_to,omitempty"`
}

type authorizeResponse struct {
	TransactionID id.TransactionID `json:"transaction_id"`
	Athlete       athleteView      `json:"athlete"`
	Client        clientView       `json:"client"`
}

type athleteView struct {
	ID       id.AthleteID `json:"id"`
	UserName string       `json:"user_name"`
}

type clientView struct {
	ID       id.ClientID `json:"id"`
	ClientID string      `json:"client_id"`
}

type meResponse struct {
	ClientID string       `json:"client_id"`
	Athlete  *athleteView `json:"athlete,omitempty"`
}

type registerClientResponse struct {
	*models.Client
	ClientSecret string `json:"client_secret"`
}

// handleLogin authenticates an athlete and sets the session cookie.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	params, err := readParams(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.service.Login(ctx, params.Get("username"), params.Get("password"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidGrant) {
			h.logger.WarnContext(ctx, "login rejected",
				"request_id", requestID,
			)
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: string(dErrors.CodeInvalidGrant)})
			return
		}
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID.String(),
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if target, ok := safeReturnTo(params.Get("return_to")); ok {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AthleteID: session.AthleteID,
		ExpiresAt: session.ExpiresAt,
	})
}

// handleLoginForm answers the login redirect issued by the session guard.
// Only a same-origin return_to is echoed back.
func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	resp := loginFormResponse{
		Action: "/login",
		Method: http.MethodPost,
		Fields: []string{"username", "password", "return_to"},
	}
	if target, ok := safeReturnTo(r.URL.Query().Get("return_to")); ok {
		resp.ReturnTo = target
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sessionID, err := id.ParseSessionID(cookie.Value); err == nil {
			if err := h.service.Logout(ctx, sessionID); err != nil {
				h.logger.ErrorContext(ctx, "failed to end login session",
					"request_id", middleware.GetRequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// redirectToLogin sends athletes without a live session to the login page,
// carrying the original request so they return to it afterwards.
func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login?return_to=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// handleAuthorize opens an authorization transaction for the logged-in
// athlete and returns what the decision page needs to render.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if responseType := query.Get("response_type"); responseType != "code" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidRequest, "response_type must be code"))
		return
	}

	result, err := h.service.Authorize(ctx, models.AuthorizeRequest{
		ClientID:    query.Get("client_id"),
		RedirectURI: query.Get("redirect_uri"),
		State:       query.Get("state"),
		AthleteID:   requestcontext.AthleteID(ctx),
		SessionID:   requestcontext.SessionID(ctx),
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeLoginRequired) {
			h.redirectToLogin(w, r)
			return
		}
		h.logger.WarnContext(ctx, "authorization request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, authorizeResponse{
		TransactionID: result.TransactionID,
		Athlete:       athleteView{ID: result.Athlete.ID, UserName: result.Athlete.UserName},
		Client:        clientView{ID: result.Client.ID, ClientID: result.Client.ClientID},
	})
}

// handleDecision applies the athlete's allow or deny and redirects the
// browser back to the client.
func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := readParams(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	txnID, approved, err := decisionFrom(params)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Decide(ctx, models.DecisionRequest{
		TransactionID: txnID,
		AthleteID:     requestcontext.AthleteID(ctx),
		SessionID:     requestcontext.SessionID(ctx),
		Approved:      approved,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "authorization decision rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	http.Redirect(w, r, result.RedirectURI, http.StatusFound)
}

// handleToken is the single token endpoint for every supported grant.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	basic, err := basicCredentials(r)
	if err != nil {
		writeTokenError(w, err, true)
		return
	}
	params, err := readParams(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Token(ctx, tokenRequestFrom(params, basic))
	if err != nil {
		writeTokenError(w, err, basic != nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func writeTokenError(w http.ResponseWriter, err error, viaBasic bool) {
	if viaBasic && dErrors.HasCode(err, dErrors.CodeInvalidClient) {
		w.Header().Set("WWW-Authenticate", `Basic realm="stride"`)
	}
	httputil.WriteError(w, err)
}

// handleMe is a minimal protected resource that echoes the token's owner.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetBearerClaims(ctx)
	if claims == nil {
		h.logger.ErrorContext(ctx, "bearer claims missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	resp := meResponse{ClientID: claims.ClientID}
	if !claims.AthleteID.IsNil() {
		resp.Athlete = &athleteView{ID: claims.AthleteID, UserName: claims.UserName}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterClientRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RegisterClient(ctx, req)
	if err != nil {
		if dErrors.IsServerFault(dErrors.CodeOf(err)) {
			h.logger.ErrorContext(ctx, "failed to register client",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerClientResponse{
		Client:       result.Client,
		ClientSecret: result.Secret,
	})
}

func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid client id"))
		return
	}
	client, err := h.service.GetClient(ctx, clientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid client id"))
		return
	}
	if err := h.service.DeleteClient(ctx, clientID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
