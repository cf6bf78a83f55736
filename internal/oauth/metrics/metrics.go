package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the OAuth flows. All methods are safe
// on a nil receiver so services can run without metrics.
type Metrics struct {
	// Tokens minted by grant type
	TokensIssued *prometheus.CounterVec

	// Token endpoint rejections by grant type and protocol error code
	GrantRejections *prometheus.CounterVec

	// Authorization decisions by outcome: approved, denied
	Decisions *prometheus.CounterVec

	// Token endpoint latency by grant type
	TokenLatency *prometheus.HistogramVec

	// Expired authorization codes removed by the sweeper
	CodesSwept prometheus.Counter
}

// New registers the OAuth metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_oauth_tokens_issued_total",
			Help: "Access tokens issued by grant type",
		}, []string{"grant_type"}),

		GrantRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_oauth_grant_rejections_total",
			Help: "Token requests rejected by grant type and error code",
		}, []string{"grant_type", "error"}),

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_oauth_authorization_decisions_total",
			Help: "Authorization decisions by outcome",
		}, []string{"outcome"}),

		TokenLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stride_oauth_token_duration_seconds",
			Help:    "Duration of token endpoint processing by grant type",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"grant_type"}),

		CodesSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "stride_oauth_authorization_codes_swept_total",
			Help: "Expired authorization codes deleted by the sweeper",
		}),
	}
}

func (m *Metrics) IncrementTokensIssued(grantType string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(grantType).Inc()
	}
}

func (m *Metrics) IncrementGrantRejection(grantType, code string) {
	if m != nil {
		m.GrantRejections.WithLabelValues(grantType, code).Inc()
	}
}

func (m *Metrics) IncrementDecision(outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveTokenLatency(grantType string, d time.Duration) {
	if m != nil {
		m.TokenLatency.WithLabelValues(grantType).Observe(d.Seconds())
	}
}

func (m *Metrics) AddCodesSwept(n int) {
	if m != nil && n > 0 {
		m.CodesSwept.Add(float64(n))
	}
}
