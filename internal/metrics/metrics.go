package metrics

import (
	"net/http"

	"github.com/fjod/slime-shop/internal/checkout"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slime_shop"

// Metrics owns its registry so tests can build as many as they like.
type Metrics struct {
	registry      *prometheus.Registry
	checkouts     *prometheus.CounterVec
	checkoutSteps *prometheus.CounterVec
	cartMutations *prometheus.CounterVec
	activeCarts   prometheus.GaugeFunc
}

// New registers the storefront collectors. activeCarts may be nil.
func New(activeCarts func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Checkout submissions by outcome.",
		}, []string{"outcome"}),
		checkoutSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_step_results_total",
			Help:      "Checkout side effects by step, policy and result.",
		}, []string{"step", "policy", "result"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.checkouts, m.checkoutSteps, m.cartMutations)

	if activeCarts != nil {
		m.activeCarts = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_carts",
			Help:      "Cart sessions currently held in memory.",
		}, activeCarts)
		reg.MustRegister(m.activeCarts)
	}
	return m
}

func (m *Metrics) CheckoutOutcome(o checkout.Outcome) {
	m.checkouts.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) StepResult(step string, policy checkout.StepPolicy, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.checkoutSteps.WithLabelValues(step, policy.String(), result).Inc()
}

// CartMutation matches the cart store event hook signature.
func (m *Metrics) CartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
