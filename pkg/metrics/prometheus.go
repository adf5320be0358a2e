package metrics

import (
	"AlphaBot/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	commandsTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	accuracy      *prometheus.GaugeVec
	rmse          *prometheus.GaugeVec
	predictions   *prometheus.GaugeVec
	followers     *prometheus.GaugeVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		commandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphabot_commands_total",
				Help: "Commands handled by type and result",
			},
			[]string{"command", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphabot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphabot_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		accuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphabot_bot_directional_accuracy_percent",
				Help: "Directional accuracy of resolved predictions",
			},
			[]string{"bot_id"},
		),
		rmse: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphabot_bot_rmse",
				Help: "Root mean squared price error of resolved predictions",
			},
			[]string{"bot_id"},
		),
		predictions: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphabot_bot_resolved_predictions",
				Help: "Number of resolved predictions folded into the accuracy record",
			},
			[]string{"bot_id"},
		),
		followers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "alphabot_bot_followers",
				Help: "Current follower count",
			},
			[]string{"bot_id"},
		),
	}
}

// RecordCommand counts one command outcome (ok, rejected, ignored, error).
func (r *Recorder) RecordCommand(cmd, result string) {
	r.commandsTotal.WithLabelValues(cmd, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordAccuracy publishes the bot's accuracy record.
func (r *Recorder) RecordAccuracy(botID string, m models.AccuracyMetrics) {
	r.accuracy.WithLabelValues(botID).Set(m.DirectionalAccuracy)
	r.rmse.WithLabelValues(botID).Set(m.RMSE)
	r.predictions.WithLabelValues(botID).Set(float64(m.TotalPredictions))
}

// RecordFollowers publishes the follower count.
func (r *Recorder) RecordFollowers(botID string, n uint64) {
	r.followers.WithLabelValues(botID).Set(float64(n))
}
