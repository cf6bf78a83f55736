package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"stride/internal/oauth/metrics"
	"stride/internal/oauth/models"
	"stride/internal/oauth/token"
	"stride/internal/oauth/verifier"
	id "stride/pkg/domain"
	"stride/pkg/platform/audit"
)

type ClientStore interface {
	Create(ctx context.Context, client *models.Client) error
	FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	FindByClientID(ctx context.Context, clientID string) (*models.Client, error)
	Delete(ctx context.Context, clientID id.ClientID) error
}

type AthleteStore interface {
	Create(ctx context.Context, athlete *models.Athlete) error
	FindByID(ctx context.Context, athleteID id.AthleteID) (*models.Athlete, error)
	FindByUserName(ctx context.Context, userName string) (*models.Athlete, error)
}

type AuthorizationCodeStore interface {
	Create(ctx context.Context, code *models.AuthorizationCode) error
	FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	Delete(ctx context.Context, code string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type AccessTokenStore interface {
	Create(ctx context.Context, token *models.AccessToken) error
	FindByToken(ctx context.Context, token string) (*models.AccessToken, error)
}

type TransactionStore interface {
	Save(ctx context.Context, tx *models.Transaction) error
	Find(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	Take(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.LoginSession) error
	Find(ctx context.Context, sessionID id.SessionID) (*models.LoginSession, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// Hasher hashes and verifies client secrets and athlete passwords.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
	VerifyDummy(secret string) bool
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Stores groups the persistence dependencies of the service.
type Stores struct {
	Clients      ClientStore
	Athletes     AthleteStore
	Codes        AuthorizationCodeStore
	Tokens       AccessTokenStore
	Transactions TransactionStore
	Sessions     SessionStore
}

// Config holds the lifetimes and bounds applied by the service.
type Config struct {
	AuthCodeTTL    time.Duration
	TransactionTTL time.Duration
	SessionTTL     time.Duration
	StoreTimeout   time.Duration
}

const (
	defaultAuthCodeTTL    = 10 * time.Minute
	defaultTransactionTTL = 10 * time.Minute
	defaultSessionTTL     = 24 * time.Hour
	defaultStoreTimeout   = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.AuthCodeTTL <= 0 {
		c.AuthCodeTTL = defaultAuthCodeTTL
	}
	if c.TransactionTTL <= 0 {
		c.TransactionTTL = defaultTransactionTTL
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	return c
}

// Service implements the authorization transaction manager, the grant
// processor and the token endpoint dispatcher, plus the login session and
// client registration flows that feed them.
type Service struct {
	clients      ClientStore
	athletes     AthleteStore
	codes        AuthorizationCodeStore
	tokens       AccessTokenStore
	transactions TransactionStore
	sessions     SessionStore

	verifiers *verifier.Registry
	hasher    Hasher
	generator *token.Generator
	tx        GrantStoreTx
	grants    map[models.GrantType]grantHandler
	cfg       Config

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTx replaces the default in-process transaction boundary, typically with
// a database transaction spanning the code and token stores.
func WithTx(tx GrantStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithGenerator(g *token.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithVerifiers sets the credential strategies the token dispatcher, login
// and bearer checks resolve through. The registry must provide the owner,
// client Basic, client body and bearer schemes.
func WithVerifiers(registry *verifier.Registry) Option {
	return func(s *Service) {
		s.verifiers = registry
	}
}

// NewVerifierRegistry builds the standard strategy set over stores.
func NewVerifierRegistry(stores Stores, hasher verifier.SecretVerifier) *verifier.Registry {
	return verifier.NewRegistry(
		verifier.NewOwner(stores.Athletes, hasher),
		verifier.NewClientBasic(stores.Clients, hasher),
		verifier.NewClientBody(stores.Clients, hasher),
		verifier.NewBearer(stores.Tokens, stores.Clients, stores.Athletes),
	)
}

// New constructs a Service. Without WithVerifiers the standard registry is
// built from stores and hasher.
func New(stores Stores, hasher Hasher, opts ...Option) *Service {
	s := &Service{
		clients:      stores.Clients,
		athletes:     stores.Athletes,
		codes:        stores.Codes,
		tokens:       stores.Tokens,
		transactions: stores.Transactions,
		sessions:     stores.Sessions,
		hasher:       hasher,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifiers == nil {
		s.verifiers = NewVerifierRegistry(stores, hasher)
	}
	s.cfg = s.cfg.withDefaults()
	if s.generator == nil {
		s.generator = token.NewGenerator(0, 0)
	}
	if s.tx == nil {
		s.tx = NewInMemoryTx(TxStores{Codes: stores.Codes, Tokens: stores.Tokens}, s.cfg.StoreTimeout)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("stride/oauth")
	}
	s.grants = map[models.GrantType]grantHandler{
		models.GrantAuthorizationCode: s.exchangeCode,
		models.GrantPassword:          s.passwordGrant,
		models.GrantClientCredentials: s.clientCredentialsGrant,
	}
	return s
}

// storeCtx bounds a single store call by the configured store timeout.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}
