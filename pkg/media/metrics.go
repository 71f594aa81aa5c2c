package media

import (
	"time"

	"github.com/Nephrolytics-ai/polyglot-media/pkg/model"
	"github.com/Nephrolytics-ai/polyglot-media/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "polyglot_media"

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeFallback = "fallback"
	outcomeSkipped  = "skipped"
)

// Metrics counts adapter calls on a private registry so embedding programs decide whether to expose it.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	calls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "adapter_calls_total",
			Help:      "Adapter calls by modality, provider and outcome.",
		},
		[]string{"modality", "provider", "outcome"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "adapter_call_duration_seconds",
			Help:      "Duration of adapter calls, including retries.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"modality", "provider"},
	)
	tokens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tokens_total",
			Help:      "Prompt and completion tokens reported by text calls.",
		},
		[]string{"provider", "type"},
	)

	for _, collector := range []prometheus.Collector{calls, latency, tokens} {
		if err := registry.Register(collector); err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
	}

	return &Metrics{registry: registry, calls: calls, latency: latency, tokens: tokens}, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile dumps the current values in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return utils.WrapIfNotNil(prometheus.WriteToTextfile(path, m.registry))
}

func (m *Metrics) record(modality model.Modality, provider model.Provider, outcome string, start time.Time, meta model.GenerationMetadata) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(modality), string(provider), outcome).Inc()
	if outcome == outcomeSkipped {
		return
	}
	m.latency.WithLabelValues(string(modality), string(provider)).Observe(time.Since(start).Seconds())
	if input := meta.Int(model.MetadataKeyInputTokens); input > 0 {
		m.tokens.WithLabelValues(string(provider), "input").Add(float64(input))
	}
	if output := meta.Int(model.MetadataKeyOutputTokens); output > 0 {
		m.tokens.WithLabelValues(string(provider), "output").Add(float64(output))
	}
}
