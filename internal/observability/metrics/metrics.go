package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries const labels applied to every metric series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics captures affiliate program health signals.
type Metrics struct {
	attributionCaptures *prometheus.CounterVec
	orderEvents         *prometheus.CounterVec
	ledgerEntries       *prometheus.CounterVec
	commissionNoops     *prometheus.CounterVec
	exportBatches       prometheus.Counter
	exportedEntries     prometheus.Counter
	httpDuration        *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// WithConfig returns the singleton metrics registry using config labels.
func WithConfig(cfg Config) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return metrics
}

// ResetForTest resets the metrics singleton for tests.
func ResetForTest() {
	metricsOnce = sync.Once{}
	metrics = nil
}

func newMetrics(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "affiliates"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	attributionCaptures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "affiliates_attribution_captures_total",
		Help:        "Referral captures by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	orderEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "affiliates_order_events_total",
		Help:        "Order lifecycle events received by type.",
		ConstLabels: constLabels,
	}, []string{"event_type"})
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "affiliates_ledger_entries_total",
		Help:        "Ledger rows written by entry type.",
		ConstLabels: constLabels,
	}, []string{"entry_type"})
	commissionNoops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "affiliates_commission_noops_total",
		Help:        "Commission operations skipped by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	exportBatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "affiliates_export_batches_total",
		Help:        "Payout CSV batches produced.",
		ConstLabels: constLabels,
	})
	exportedEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "affiliates_exported_entries_total",
		Help:        "Ledger rows marked exported.",
		ConstLabels: constLabels,
	})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "affiliates_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status class.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"route", "method", "status_class"})

	registerer.MustRegister(
		attributionCaptures,
		orderEvents,
		ledgerEntries,
		commissionNoops,
		exportBatches,
		exportedEntries,
		httpDuration,
	)

	return &Metrics{
		attributionCaptures: attributionCaptures,
		orderEvents:         orderEvents,
		ledgerEntries:       ledgerEntries,
		commissionNoops:     commissionNoops,
		exportBatches:       exportBatches,
		exportedEntries:     exportedEntries,
		httpDuration:        httpDuration,
	}
}

// IncAttributionCapture increments referral capture counts by outcome.
func (m *Metrics) IncAttributionCapture(outcome string) {
	if m == nil || m.attributionCaptures == nil {
		return
	}
	m.attributionCaptures.WithLabelValues(outcome).Inc()
}

// IncOrderEvent increments order event counts by type.
func (m *Metrics) IncOrderEvent(eventType string) {
	if m == nil || m.orderEvents == nil {
		return
	}
	m.orderEvents.WithLabelValues(eventType).Inc()
}

// IncLedgerEntry increments ledger row counts by entry type.
func (m *Metrics) IncLedgerEntry(entryType string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(entryType).Inc()
}

// AddLedgerEntries increments ledger row counts by entry type and count.
func (m *Metrics) AddLedgerEntries(entryType string, count int) {
	if m == nil || m.ledgerEntries == nil || count <= 0 {
		return
	}
	m.ledgerEntries.WithLabelValues(entryType).Add(float64(count))
}

// IncCommissionNoop increments skipped commission operations by reason.
func (m *Metrics) IncCommissionNoop(reason string) {
	if m == nil || m.commissionNoops == nil {
		return
	}
	m.commissionNoops.WithLabelValues(reason).Inc()
}

// IncExportBatch increments the payout export batch counter.
func (m *Metrics) IncExportBatch(entries int) {
	if m == nil || m.exportBatches == nil {
		return
	}
	m.exportBatches.Inc()
	if entries > 0 && m.exportedEntries != nil {
		m.exportedEntries.Add(float64(entries))
	}
}

// ObserveHTTPRequest records request latency for a route.
func (m *Metrics) ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
