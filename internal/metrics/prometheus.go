package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is the default Sink, registering its metrics on the supplied
// registerer (pass prometheus.NewRegistry() in tests to avoid colliding
// with the global DefaultRegisterer across packages).
type Prometheus struct {
	entities    *prometheus.GaugeVec
	shards      prometheus.Gauge
	singletons  *prometheus.GaugeVec
	sendOutcome *prometheus.CounterVec
	unhealthy   prometheus.Counter
	handler     http.Handler
}

var _ Sink = (*Prometheus)(nil)

// NewPrometheus registers the sink's metrics on reg and returns it. reg may
// be prometheus.DefaultRegisterer or a dedicated *prometheus.Registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	p := &Prometheus{
		entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "entities",
			Help: "Number of live entities managed locally, by type.",
		}, []string{"type"}),
		shards: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shards",
			Help: "Number of shards currently assigned to this pod.",
		}),
		singletons: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "singletons",
			Help: "Whether a named singleton is running on this pod.",
		}, []string{"singleton_name"}),
		sendOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sends_total",
			Help: "Completed sends, by outcome.",
		}, []string{"outcome"}),
		unhealthy: factory.NewCounter(prometheus.CounterOpts{
			Name: "unhealthy_pod_reports_total",
			Help: "Debounced unhealthy-pod notifications sent to the Shard Manager.",
		}),
	}

	if reg, ok := reg.(*prometheus.Registry); ok {
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	} else {
		p.handler = promhttp.Handler()
	}

	return p
}

func (p *Prometheus) SetEntityCount(entityType string, count int) {
	p.entities.WithLabelValues(entityType).Set(float64(count))
}

func (p *Prometheus) SetShardCount(count int) {
	p.shards.Set(float64(count))
}

func (p *Prometheus) SetSingletonRunning(name string, running bool) {
	v := 0.0
	if running {
		v = 1.0
	}
	p.singletons.WithLabelValues(name).Set(v)
}

func (p *Prometheus) IncSendOutcome(outcome string) {
	p.sendOutcome.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) IncUnhealthyPodReport() {
	p.unhealthy.Inc()
}

func (p *Prometheus) Handler() http.Handler {
	return p.handler
}
