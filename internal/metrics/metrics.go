package metrics

import (
	"fmt"
	"net/http"

	"coinpulse/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks collector runs on its own registry so one-shot runs can dump
// it to a node-exporter textfile and the server can expose it over HTTP.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	lastRun       prometheus.Gauge
	rowsAdded     prometheus.Gauge
	datasetRows   prometheus.Gauge
	coinsSkipped  prometheus.Gauge
	fieldsMissing *prometheus.GaugeVec
	runDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinpulse_runs_total",
			Help: "Collector runs by outcome.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_last_run_timestamp_seconds",
			Help: "Completion time of the last successful run.",
		}),
		rowsAdded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_rows_added",
			Help: "Rows contributed by the last run.",
		}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_dataset_rows",
			Help: "Rows in the persisted dataset after the last run.",
		}),
		coinsSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coinpulse_coins_skipped",
			Help: "Coins dropped from the last batch.",
		}),
		fieldsMissing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coinpulse_enrichment_missing",
			Help: "1 when the enrichment field was missing in the last batch.",
		}, []string{"field"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinpulse_run_duration_seconds",
			Help:    "Wall time of collector runs.",
			Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
		}),
	}
	m.registry.MustRegister(m.runs, m.lastRun, m.rowsAdded, m.datasetRows, m.coinsSkipped, m.fieldsMissing, m.runDuration)
	return m
}

// Observe records a completed run.
func (m *Metrics) Observe(result domain.RunResult) {
	m.runs.WithLabelValues("ok").Inc()
	m.lastRun.Set(float64(result.CompletedAt.Unix()))
	m.rowsAdded.Set(float64(result.RowsAdded))
	m.datasetRows.Set(float64(result.DatasetRows))
	m.coinsSkipped.Set(float64(len(result.CoinsSkipped)))
	m.runDuration.Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())

	missing := make(map[domain.Field]bool, len(result.MissingFields))
	for _, f := range result.MissingFields {
		missing[f] = true
	}
	for _, f := range domain.EnrichmentColumns {
		v := 0.0
		if missing[f] {
			v = 1
		}
		m.fieldsMissing.WithLabelValues(string(f)).Set(v)
	}
}

// ObserveFailure records a run that could not persist.
func (m *Metrics) ObserveFailure() {
	m.runs.WithLabelValues("error").Inc()
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
