package broker

import "github.com/prometheus/client_golang/prometheus"

// metrics are registered on the Registerer from Options, a no-op one by
// default so embedding the core never double-registers with the global
// registry.
type metrics struct {
	dispatched    *prometheus.CounterVec
	handlerErrors *prometheus.CounterVec
	discarded     *prometheus.CounterVec
	enabled       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "broker",
			Name:      "outputs_dispatched_total",
			Help:      "Agent outputs dispatched to handlers.",
		}, []string{"agent"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "broker",
			Name:      "handler_errors_total",
			Help:      "Errors returned by dispatch handlers.",
		}, []string{"agent"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "broker",
			Name:      "outputs_discarded_total",
			Help:      "Agent outputs discarded by the run fence.",
		}, []string{"agent"}),
		enabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentwire",
			Subsystem: "broker",
			Name:      "agents_enabled",
			Help:      "Agents currently enabled.",
		}),
	}
	reg.MustRegister(m.dispatched, m.handlerErrors, m.discarded, m.enabled)
	return m
}

// noopRegisterer ignores registrations.
type noopRegisterer struct{}

func (noopRegisterer) Register(prometheus.Collector) error { return nil }
func (noopRegisterer) MustRegister(...prometheus.Collector) {}
func (noopRegisterer) Unregister(prometheus.Collector) bool { return true }
