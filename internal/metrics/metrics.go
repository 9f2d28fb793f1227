// Package metrics exposes the Prometheus instrumentation for the
// conversation core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors the services report into. Constructed
// against an explicit registry so tests can use isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ModelBuilds        prometheus.Counter
	AgentBuilds        prometheus.Counter
	GenerationFailures prometheus.Counter
	SessionBusy        prometheus.Counter
	TranscriptGaps     prometheus.Counter
	StreamDuration     prometheus.Histogram
}

// New registers the conversation collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ModelBuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_model_builds_total",
			Help: "Model bindings constructed (cache misses on the model cache).",
		}),
		AgentBuilds: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_agent_builds_total",
			Help: "Agent bindings constructed (cache misses on the agent cache).",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_generation_failures_total",
			Help: "Streams terminated by a generation error.",
		}),
		SessionBusy: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_session_busy_total",
			Help: "Requests rejected because the session already had a stream in flight.",
		}),
		TranscriptGaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "parlor_transcript_gaps_total",
			Help: "Assistant replies streamed to the client but not persisted to the transcript.",
		}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "parlor_stream_duration_seconds",
			Help:    "Wall time from first to last fragment of a completed stream.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
