package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"stride/internal/oauth/models"
	"stride/internal/oauth/verifier"
	"stride/internal/platform/metrics"
	"stride/internal/platform/middleware"
	id "stride/pkg/domain"
	"stride/pkg/platform/middleware/metadata"
	"stride/pkg/platform/middleware/requesttime"
)

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks Service

// Service defines the OAuth operations the HTTP surface depends on.
type Service interface {
	Login(ctx context.Context, userName, password string) (*models.LoginSession, error)
	Logout(ctx context.Context, sessionID id.SessionID) error
	ResolveSession(ctx context.Context, sessionID id.SessionID) (*models.LoginSession, error)
	Authorize(ctx context.Context, req models.AuthorizeRequest) (*models.AuthorizeResult, error)
	Decide(ctx context.Context, req models.DecisionRequest) (*models.DecisionResult, error)
	Token(ctx context.Context, req models.TokenRequest) (*models.TokenResult, error)
	AuthenticateBearer(ctx context.Context, token string) (*verifier.Principal, error)
	RegisterClient(ctx context.Context, req *models.RegisterClientRequest) (*models.RegisterClientResult, error)
	GetClient(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	DeleteClient(ctx context.Context, clientID id.ClientID) error
}

// SessionCookieName carries the login session ID.
const SessionCookieName = "stride_session"

const defaultRequestTimeout = 30 * time.Second

// Config holds the HTTP-surface settings.
type Config struct {
	AdminToken     string
	CookieSecure   bool
	RequestTimeout time.Duration
}

// Handler serves the login, authorization, token, resource and client
// registration endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
	cfg     Config
}

// New creates a new OAuth Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, cfg Config) *Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Handler{
		logger:  logger,
		service: service,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Register registers the OAuth routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	oauthRouter := chi.NewRouter()
	oauthRouter.Use(middleware.Recovery(h.logger))
	oauthRouter.Use(middleware.RequestID)
	oauthRouter.Use(middleware.Logger(h.logger))
	oauthRouter.Use(middleware.Timeout(h.cfg.RequestTimeout))
	oauthRouter.Use(metadata.ClientMetadata)
	oauthRouter.Use(requesttime.Middleware)
	oauthRouter.Use(middleware.LatencyMiddleware(h.metrics))

	oauthRouter.With(middleware.NoStore).Get("/login", h.handleLoginForm)
	oauthRouter.Post("/login", h.handleLogin)
	oauthRouter.Post("/logout", h.handleLogout)

	oauthRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(SessionCookieName, sessionValidator{h.service}, h.logger, h.redirectToLogin))
		r.Get("/oauth/authorize", h.handleAuthorize)
		r.Post("/oauth/authorize/decision", h.handleDecision)
	})

	oauthRouter.With(middleware.NoStore).Post("/oauth/token", h.handleToken)

	oauthRouter.With(middleware.RequireBearer(bearerValidator{h.service}, h.logger)).Get("/api/me", h.handleMe)

	oauthRouter.Route("/api/1/clients", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.cfg.AdminToken, h.logger))
		r.Use(middleware.NoStore)
		r.Post("/", h.handleRegisterClient)
		r.Get("/{id}", h.handleGetClient)
		r.Delete("/{id}", h.handleDeleteClient)
	})

	r.Mount("/", oauthRouter)
}

// sessionValidator adapts the service to the session middleware.
type sessionValidator struct {
	service Service
}

func (v sessionValidator) ValidateSession(ctx context.Context, sessionID id.SessionID) (id.AthleteID, error) {
	session, err := v.service.ResolveSession(ctx, sessionID)
	if err != nil {
		return id.AthleteID{}, err
	}
	return session.AthleteID, nil
}

// bearerValidator adapts the service to the bearer middleware.
type bearerValidator struct {
	service Service
}

func (v bearerValidator) ValidateBearer(ctx context.Context, token string) (*middleware.BearerClaims, error) {
	principal, err := v.service.AuthenticateBearer(ctx, token)
	if err != nil {
		return nil, err
	}
	claims := &middleware.BearerClaims{ClientID: principal.Client.ClientID}
	if principal.Athlete != nil {
		claims.AthleteID = principal.Athlete.ID
		claims.UserName = principal.Athlete.UserName
	}
	return claims, nil
}
