package obs

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/backend-cotiza/internal/events"
)

var (
	domainOnce sync.Once

	// QuotesCreatedTotal counts created quotes.
	QuotesCreatedTotal prometheus.Counter
	// QuotesSettledTotal counts quotes fully paid off.
	QuotesSettledTotal prometheus.Counter
	// PaymentsTotal counts payment mutations by kind (recorded, voided).
	PaymentsTotal *prometheus.CounterVec
	// PortfolioRefreshDuration records portfolio rollup latency in milliseconds.
	PortfolioRefreshDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesCreatedTotal = register[prometheus.Counter](reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_created_total",
			Help:      "Count of quotes created.",
		}))
		QuotesSettledTotal = register[prometheus.Counter](reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_settled_total",
			Help:      "Count of quotes fully paid off.",
		}))
		PaymentsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Count of payment mutations by kind.",
		}, []string{"kind"}))
		PortfolioRefreshDuration = register[prometheus.Histogram](reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "portfolio_refresh_duration_ms",
			Help:      "Latency of portfolio rollup recomputation in milliseconds.",
			Buckets:   defaultLatencyBuckets,
		}))
	})
}

// MetricsNotifier bumps domain counters for every emitted event. It
// implements events.Notifier.
type MetricsNotifier struct{}

// Notify maps event topics onto their counters.
func (MetricsNotifier) Notify(_ context.Context, event events.Event) error {
	switch event.Topic {
	case events.TopicQuoteCreated:
		if QuotesCreatedTotal != nil {
			QuotesCreatedTotal.Inc()
		}
	case events.TopicQuoteSettled:
		if QuotesSettledTotal != nil {
			QuotesSettledTotal.Inc()
		}
	case events.TopicPaymentRecorded:
		if PaymentsTotal != nil {
			PaymentsTotal.WithLabelValues("recorded").Inc()
		}
	case events.TopicPaymentVoided:
		if PaymentsTotal != nil {
			PaymentsTotal.WithLabelValues("voided").Inc()
		}
	}
	return nil
}
