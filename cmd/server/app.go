package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"stride/internal/oauth/handler"
	oauthmetrics "stride/internal/oauth/metrics"
	"stride/internal/oauth/service"
	accesstoken "stride/internal/oauth/store/access-token"
	athletestore "stride/internal/oauth/store/athlete"
	authorizationcode "stride/internal/oauth/store/authorization-code"
	clientstore "stride/internal/oauth/store/client"
	sessionstore "stride/internal/oauth/store/session"
	transactionstore "stride/internal/oauth/store/transaction"
	"stride/internal/oauth/token"
	"stride/internal/platform/config"
	"stride/internal/platform/metrics"
	"stride/internal/platform/postgres"
	redisclient "stride/internal/platform/redis"
	"stride/pkg/platform/audit"
	"stride/pkg/platform/audit/publisher"
	kafkastore "stride/pkg/platform/audit/store/kafka"
	auditmemory "stride/pkg/platform/audit/store/memory"
	"stride/pkg/platform/httputil"
	"stride/pkg/secrets"
)

const auditBufferSize = 1024

// app holds every long-lived dependency of the server. Optional backends are
// nil when not configured.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	db         *sql.DB
	redis      *redisclient.Client
	auditStore *kafkastore.Store
	publisher  *publisher.Publisher

	service *service.Service
}

// newApp connects the configured backends and builds the OAuth service.
// Postgres backs clients, athletes, codes and tokens; Redis backs
// transactions and login sessions; Kafka receives audit events. Each falls
// back to its in-memory implementation when unset.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if a.db, err = postgres.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if a.redis, err = redisclient.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}

	var sink audit.Store
	if len(cfg.Audit.KafkaBrokers) > 0 {
		if a.auditStore, err = kafkastore.New(cfg.Audit.KafkaBrokers, cfg.Audit.Topic); err != nil {
			return nil, fmt.Errorf("create audit producer: %w", err)
		}
		if err = a.auditStore.EnsureTopic(ctx, 1, 1); err != nil {
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		sink = a.auditStore
		a.publisher = publisher.NewPublisher(sink, publisher.WithAsyncBuffer(auditBufferSize), publisher.WithLogger(logger))
	} else {
		sink = auditmemory.NewInMemoryStore()
		a.publisher = publisher.NewPublisher(sink, publisher.WithLogger(logger))
	}

	stores := service.Stores{}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(oauthmetrics.New(a.registry)),
		service.WithAuditPublisher(a.publisher),
		service.WithGenerator(token.NewGenerator(cfg.OAuth.AuthCodeBytes, cfg.OAuth.AccessTokenBytes)),
		service.WithConfig(service.Config{
			AuthCodeTTL:    cfg.OAuth.AuthCodeTTL,
			TransactionTTL: cfg.OAuth.TransactionTTL,
			SessionTTL:     cfg.OAuth.SessionTTL,
			StoreTimeout:   cfg.OAuth.StoreTimeout,
		}),
	}

	if a.db != nil {
		stores.Clients = clientstore.NewPostgres(a.db)
		stores.Athletes = athletestore.NewPostgres(a.db)
		stores.Codes = authorizationcode.NewPostgres(a.db)
		stores.Tokens = accesstoken.NewPostgres(a.db)
		opts = append(opts, service.WithTx(newGrantPostgresTx(a.db, service.TxStores{
			Codes:  stores.Codes,
			Tokens: stores.Tokens,
		}, cfg.OAuth.StoreTimeout)))
	} else {
		logger.WarnContext(ctx, "database.url not set, using in-memory record stores")
		stores.Clients = clientstore.NewInMemory()
		stores.Athletes = athletestore.NewInMemory()
		stores.Codes = authorizationcode.New()
		stores.Tokens = accesstoken.New()
	}

	if a.redis != nil {
		stores.Transactions = transactionstore.NewRedis(a.redis.Client)
		stores.Sessions = sessionstore.NewRedis(a.redis.Client)
	} else {
		logger.WarnContext(ctx, "redis.url not set, using in-memory transaction and session stores")
		stores.Transactions = transactionstore.NewInMemory()
		stores.Sessions = sessionstore.NewInMemory()
	}

	hasher := secrets.NewHasher(cfg.OAuth.BcryptCost)
	opts = append(opts, service.WithVerifiers(service.NewVerifierRegistry(stores, hasher)))
	a.service = service.New(stores, hasher, opts...)
	return a, nil
}

// Router mounts health, metrics and the OAuth surface.
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))

	h := handler.New(a.service, a.logger, metrics.New(a.registry), handler.Config{
		AdminToken:     a.cfg.Server.AdminToken,
		CookieSecure:   a.cfg.Server.CookieSecure,
		RequestTimeout: a.cfg.Server.RequestTimeout,
	})
	h.Register(r)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth pings every configured backend concurrently.
func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.auditStore != nil {
		checks["kafka"] = a.auditStore.Ping
	}

	results := make(map[string]string, len(checks))
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	outcomes := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			outcomes[i] = checks[name](ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	for i, name := range names {
		if outcomes[i] != nil {
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	if err := errors.Join(outcomes...); err != nil {
		a.logger.WarnContext(ctx, "health check failed", "error", err)
	}

	resp := healthResponse{Status: "ok", Checks: results}
	if status != http.StatusOK {
		resp.Status = "degraded"
	}
	httputil.WriteJSON(w, status, resp)
}

// Close releases backends in reverse order of construction. The publisher is
// drained before the Kafka producer it writes to.
func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.auditStore != nil {
		a.auditStore.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close postgres", "error", err)
		}
	}
}
