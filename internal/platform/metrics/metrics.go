package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the booking engine counters on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Transitions   *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	SchedulerRuns *prometheus.CounterVec
	FanOutSkipped prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		reg: reg,
		Transitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Lifecycle transitions attempted, by entity, operation and result code.",
		}, []string{"entity", "op", "result"}),
		Notifications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "booking_notifications_total",
			Help: "Notifications written, by topic.",
		}, []string{"topic"}),
		SchedulerRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "booking_scheduler_scans_total",
			Help: "Scheduler scans, by scan and outcome.",
		}, []string{"scan", "outcome"}),
		FanOutSkipped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "booking_fanout_skipped_units_total",
			Help: "Units skipped during bulk request fan-out.",
		}),
	}
}

// Observe records one transition; a nil receiver is a no-op.
func (m *Metrics) Observe(entity, op, result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.Transitions.WithLabelValues(entity, op, result).Inc()
}

func (m *Metrics) Notified(topic string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(topic).Inc()
}

func (m *Metrics) Scan(scan, outcome string) {
	if m == nil {
		return
	}
	m.SchedulerRuns.WithLabelValues(scan, outcome).Inc()
}

func (m *Metrics) Skipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FanOutSkipped.Add(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
