package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts scheduler activity. Build it once per registry.
type Metrics struct {
	scheduled *prometheus.CounterVec
	fired     *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	armed     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		scheduled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notekeeper_notifications_scheduled_total",
				Help: "Notifications scheduled, by owner kind and delivery mode",
			},
			[]string{"kind", "mode"},
		),
		fired: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notekeeper_notifications_fired_total",
				Help: "Notifications claimed and dispatched",
			},
			[]string{"kind", "mode"},
		),
		cancelled: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notekeeper_notifications_cancelled_total",
				Help: "Pending notifications removed before firing",
			},
			[]string{"kind"},
		),
		armed: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "notekeeper_notifications_pending_timers",
				Help: "Exact notifications currently waiting on an in-process timer",
			},
		),
	}
}
