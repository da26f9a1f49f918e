// Package metrics holds the Prometheus collectors for extraction runs and the HTTP
// service. Collectors live on a private registry so tests can build their own.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

const namespace = "participation"

// Metrics groups every collector the application records.
type Metrics struct {
	registry *prometheus.Registry

	Runs                *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	RecordsExtracted    prometheus.Counter
	RecordsReplaced     prometheus.Counter
	UnrecognizedMarkers prometheus.Counter
	LockWait            prometheus.Histogram
	HTTPRequests        *prometheus.CounterVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Extraction runs by mode and outcome.",
		}, []string{"mode", "result"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of extraction runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records produced by the reshaper.",
		}),
		RecordsReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_replaced_total",
			Help:      "Ledger rows superseded by a newer batch row.",
		}),
		UnrecognizedMarkers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unrecognized_markers_total",
			Help:      "Non-empty cells that matched no attendance rule.",
		}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_lock_wait_seconds",
			Help:      "Time spent waiting for a ledger write lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.Runs, m.RunDuration, m.RecordsExtracted, m.RecordsReplaced,
		m.UnrecognizedMarkers, m.LockWait, m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes the application's own collectors to path in the format read by
// the node exporter textfile collector. Go and process metrics are left out because
// the exporter reports its own. An empty path or nil receiver writes nothing.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	own := prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		mfs, err := m.registry.Gather()
		if err != nil {
			return nil, err
		}
		out := mfs[:0]
		for _, mf := range mfs {
			if strings.HasPrefix(mf.GetName(), namespace+"_") {
				out = append(out, mf)
			}
		}
		return out, nil
	})
	return eris.Wrapf(prometheus.WriteToTextfile(path, own), "metrics: write textfile %s", path)
}

// ObserveRun records the outcome and duration of one run. A nil receiver is a no-op
// so callers can run without metrics.
func (m *Metrics) ObserveRun(mode string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Runs.WithLabelValues(mode, result).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

// AddRecords counts a reshaped batch and how many ledger rows it replaced.
func (m *Metrics) AddRecords(extracted, replaced int) {
	if m == nil {
		return
	}
	m.RecordsExtracted.Add(float64(extracted))
	m.RecordsReplaced.Add(float64(replaced))
}

// IncUnrecognized counts one unrecognized cell marker.
func (m *Metrics) IncUnrecognized() {
	if m == nil {
		return
	}
	m.UnrecognizedMarkers.Inc()
}

// ObserveLockWait records how long a writer waited for the ledger lock.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.Observe(d.Seconds())
}
