package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	mutations       *prometheus.CounterVec
	saves           *prometheus.CounterVec
	saveDuration    prometheus.Histogram
	loads           *prometheus.CounterVec
	savePending     prometheus.Gauge
	importRows      *prometheus.CounterVec
	exports         *prometheus.CounterVec
}

// NewMetricsService registers the gradebook collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_mutations_total",
		Help: "Store mutations by operation and result",
	}, []string{"op", "result"})

	saves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_saves_total",
		Help: "Snapshot saves by result",
	}, []string{"result"})

	saveDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gradebook_save_duration_seconds",
		Help:    "Duration of snapshot saves",
		Buckets: prometheus.DefBuckets,
	})

	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_loads_total",
		Help: "Snapshot loads by result",
	}, []string{"result"})

	savePending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gradebook_unsaved_changes",
		Help: "1 while committed changes are not yet persisted",
	})

	importRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_import_rows_total",
		Help: "Imported student rows by outcome",
	}, []string{"outcome"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_exports_total",
		Help: "Rendered export documents by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, mutations, saves, saveDuration, loads, savePending, importRows, exports, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		mutations:       mutations,
		saves:           saves,
		saveDuration:    saveDuration,
		loads:           loads,
		savePending:     savePending,
		importRows:      importRows,
		exports:         exports,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordMutation counts a store mutation attempt.
func (m *MetricsService) RecordMutation(op string, ok bool) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result(ok)).Inc()
}

// ObserveSave records a snapshot save.
func (m *MetricsService) ObserveSave(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(result(ok)).Inc()
	m.saveDuration.Observe(duration.Seconds())
}

// ObserveLoad records a snapshot load.
func (m *MetricsService) ObserveLoad(ok bool, _ time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result(ok)).Inc()
}

// SetSavePending flags whether committed changes await persistence.
func (m *MetricsService) SetSavePending(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.savePending.Set(1)
		return
	}
	m.savePending.Set(0)
}

// RecordImport counts added and skipped import rows.
func (m *MetricsService) RecordImport(added, skipped int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("added").Add(float64(added))
	m.importRows.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordExport counts a rendered export.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
