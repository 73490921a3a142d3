package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal    *prometheus.CounterVec
	providerCalls  *prometheus.CounterVec
	breakerOpen    *prometheus.GaugeVec
	resolveLatency *prometheus.HistogramVec
	compositeScore *prometheus.GaugeVec
	outcomesTotal  *prometheus.CounterVec
	signalWeight   *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapulse_events_total",
				Help: "Events seen by the dedup gate, by result",
			},
			[]string{"result"},
		),
		providerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapulse_provider_calls_total",
				Help: "Provider fetch attempts, by provider, data class and result",
			},
			[]string{"provider", "class", "result"},
		),
		breakerOpen: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphapulse_breaker_open",
				Help: "1 when a provider circuit breaker is open",
			},
			[]string{"provider"},
		),
		resolveLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphapulse_resolve_duration_seconds",
				Help:    "End-to-end resolution latency per data class",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"class"},
		),
		compositeScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphapulse_composite_score",
				Help: "Last composite score produced per ticker",
			},
			[]string{"ticker"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapulse_outcomes_total",
				Help: "Finalized alert outcomes by label",
			},
			[]string{"label"},
		),
		signalWeight: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphapulse_signal_weight",
				Help: "Active weight per signal name",
			},
			[]string{"signal"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphapulse_errors_total",
				Help: "Errors encountered, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (r *Recorder) RecordEvent(result string) {
	r.eventsTotal.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordProviderCall(provider, class, result string) {
	r.providerCalls.WithLabelValues(provider, class, result).Inc()
}

func (r *Recorder) RecordBreakerState(provider string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	r.breakerOpen.WithLabelValues(provider).Set(v)
}

func (r *Recorder) RecordResolveLatency(class string, seconds float64) {
	r.resolveLatency.WithLabelValues(class).Observe(seconds)
}

func (r *Recorder) RecordComposite(ticker string, value float64) {
	r.compositeScore.WithLabelValues(ticker).Set(value)
}

func (r *Recorder) RecordOutcome(label string) {
	r.outcomesTotal.WithLabelValues(label).Inc()
}

func (r *Recorder) RecordSignalWeight(name string, weight float64) {
	r.signalWeight.WithLabelValues(name).Set(weight)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
