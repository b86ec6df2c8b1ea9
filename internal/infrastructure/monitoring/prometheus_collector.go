package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes session negotiation metrics. It implements the
// orchestrator's metrics contract.
type Collector struct {
	negotiationsTotal   *prometheus.CounterVec
	negotiationDuration *prometheus.HistogramVec
	transportsActive    prometheus.Gauge
}

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		negotiationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webcaster_negotiations_total",
			Help: "Negotiation attempts by kind and result",
		}, []string{"kind", "result"}),

		negotiationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webcaster_negotiation_duration_seconds",
			Help:    "Duration of successful negotiations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),

		transportsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webcaster_transports_active",
			Help: "Currently owned peer transports",
		}),
	}
}

func (c *Collector) NegotiationStarted(kind string) {
	c.negotiationsTotal.WithLabelValues(kind, "started").Inc()
}

func (c *Collector) NegotiationFailed(kind string) {
	c.negotiationsTotal.WithLabelValues(kind, "failed").Inc()
}

func (c *Collector) NegotiationCompleted(kind string, d time.Duration) {
	c.negotiationsTotal.WithLabelValues(kind, "completed").Inc()
	c.negotiationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) TransportOpened() {
	c.transportsActive.Inc()
}

func (c *Collector) TransportClosed() {
	c.transportsActive.Dec()
}
