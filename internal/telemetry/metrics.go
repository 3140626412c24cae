package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "catalog"

// Outcome labels for mutation counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the business collectors for carts and reviews. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	CartsCreated   prometheus.Counter
	CartMutations  *prometheus.CounterVec
	CartItemsAdded prometheus.Counter
	CartsCleared   prometheus.Counter
	CartValue      prometheus.Histogram
	ReviewSearches *prometheus.CounterVec
	ReviewsCreated prometheus.Counter
	HelpfulVotes   prometheus.Counter
	StoreRetries   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CartsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_created_total",
			Help:      "Carts created on first access",
		}),
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		CartItemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_items_added_total",
			Help:      "Units added to carts",
		}),
		CartsCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_cleared_total",
			Help:      "Carts emptied by clear",
		}),
		CartValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_value",
			Help:      "Cart total after a successful mutation",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		ReviewSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_searches_total",
			Help:      "Review searches by sort order",
		}, []string{"sort"}),
		ReviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_created_total",
			Help:      "Reviews created",
		}),
		HelpfulVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_helpful_votes_total",
			Help:      "Helpful votes recorded",
		}),
		StoreRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_store_retries_total",
			Help:      "Optimistic write conflicts retried by the cart store",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		m.CartsCreated,
		m.CartMutations,
		m.CartItemsAdded,
		m.CartsCleared,
		m.CartValue,
		m.ReviewSearches,
		m.ReviewsCreated,
		m.HelpfulVotes,
		m.StoreRetries,
	)

	return m
}

func (m *Metrics) CartCreated() {
	if m == nil {
		return
	}
	m.CartsCreated.Inc()
}

func (m *Metrics) CartMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ItemsAdded(quantity int) {
	if m == nil || quantity <= 0 {
		return
	}
	m.CartItemsAdded.Add(float64(quantity))
}

func (m *Metrics) CartCleared() {
	if m == nil {
		return
	}
	m.CartsCleared.Inc()
}

func (m *Metrics) ObserveCartValue(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.CartValue.Observe(total.InexactFloat64())
}

func (m *Metrics) ReviewSearch(sort string) {
	if m == nil {
		return
	}
	m.ReviewSearches.WithLabelValues(sort).Inc()
}

func (m *Metrics) ReviewCreated() {
	if m == nil {
		return
	}
	m.ReviewsCreated.Inc()
}

func (m *Metrics) HelpfulVote() {
	if m == nil {
		return
	}
	m.HelpfulVotes.Inc()
}

func (m *Metrics) StoreRetry(backend string) {
	if m == nil {
		return
	}
	m.StoreRetries.WithLabelValues(backend).Inc()
}
