package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/platform/httputil"
	"stride/pkg/requestcontext"
)

// BearerValidator resolves an access token presented on a resource request.
type BearerValidator interface {
	ValidateBearer(ctx context.Context, token string) (*BearerClaims, error)
}

// BearerClaims describe who an access token was issued to. AthleteID is nil
// and UserName empty for client-only tokens.
type BearerClaims struct {
	ClientID  string
	AthleteID id.AthleteID
	UserName  string
}

// SessionValidator resolves a login session to the athlete it belongs to.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID id.SessionID) (id.AthleteID, error)
}

type contextKeyBearerClaims struct{}

// GetBearerClaims returns the claims set by RequireBearer, or nil.
func GetBearerClaims(ctx context.Context) *BearerClaims {
	claims, _ := ctx.Value(contextKeyBearerClaims{}).(*BearerClaims)
	return claims
}

// WithBearerClaims is used by tests to simulate RequireBearer.
func WithBearerClaims(ctx context.Context, claims *BearerClaims) context.Context {
	return context.WithValue(ctx, contextKeyBearerClaims{}, claims)
}

// RequireBearer rejects requests without a valid Authorization: Bearer token.
func RequireBearer(validator BearerValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="stride"`)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateBearer(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="stride", error="invalid_token"`)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = WithBearerClaims(ctx, claims)
			if !claims.AthleteID.IsNil() {
				ctx = requestcontext.WithAthleteID(ctx, claims.AthleteID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession resolves the login session cookie and stores the athlete
// and session IDs in the request context. Requests without a live session
// are passed to onMissing, which typically redirects to the login page.
func RequireSession(cookieName string, validator SessionValidator, logger *slog.Logger, onMissing http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cookie, err := r.Cookie(cookieName)
			if err != nil {
				onMissing(w, r)
				return
			}
			sessionID, err := id.ParseSessionID(cookie.Value)
			if err != nil {
				onMissing(w, r)
				return
			}

			athleteID, err := validator.ValidateSession(ctx, sessionID)
			if err != nil {
				if dErrors.IsServerFault(dErrors.CodeOf(err)) {
					logger.ErrorContext(ctx, "failed to resolve login session",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					httputil.WriteError(w, err)
					return
				}
				onMissing(w, r)
				return
			}

			ctx = requestcontext.WithSessionID(ctx, sessionID)
			ctx = requestcontext.WithAthleteID(ctx, athleteID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdminToken guards administrative routes with a shared token sent in
// X-Admin-Token. An empty configured token disables the routes entirely.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Admin-Token")
			if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin access denied",
					"request_id", GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
