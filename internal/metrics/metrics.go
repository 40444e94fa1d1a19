// Package metrics records workflow counters for the API server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	claimed          prometheus.Counter
	deliveries       *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	regenerations    *prometheus.CounterVec
	archived         prometheus.Counter
	archiveErrors    prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		claimed: f.NewCounter(prometheus.CounterOpts{
			Name: "replydesk_messages_claimed_total",
			Help: "Pending messages claimed by console polls",
		}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "replydesk_deliveries_total",
			Help: "Reply deliveries by channel and status",
		}, []string{"channel", "status"}),
		deliveryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replydesk_delivery_duration_seconds",
			Help:    "Time spent in the delivery channel",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		regenerations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "replydesk_regenerations_total",
			Help: "Draft regenerations by status",
		}, []string{"status"}),
		archived: f.NewCounter(prometheus.CounterOpts{
			Name: "replydesk_messages_archived_total",
			Help: "Sent messages moved into conversation history",
		}),
		archiveErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "replydesk_archive_errors_total",
			Help: "Messages the archival sweep failed to move",
		}),
	}
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

func (r *Recorder) Claimed(n int) { r.claimed.Add(float64(n)) }

func (r *Recorder) ObserveDelivery(channel string, ok bool, d time.Duration) {
	r.deliveries.WithLabelValues(channel, status(ok)).Inc()
	r.deliveryDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func (r *Recorder) ObserveRegeneration(ok bool) {
	r.regenerations.WithLabelValues(status(ok)).Inc()
}

func (r *Recorder) Archived(n int) { r.archived.Add(float64(n)) }

func (r *Recorder) ArchiveFailed() { r.archiveErrors.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
