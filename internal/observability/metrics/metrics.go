package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "wecar_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	workflowOpTotal   *prometheus.CounterVec
	workflowOpLatency *prometheus.HistogramVec

	settlementOpTotal   *prometheus.CounterVec
	settlementOpLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	loginTotal *prometheus.CounterVec

	mailTotal *prometheus.CounterVec

	translateTotal   *prometheus.CounterVec
	translateLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		workflowOpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "workflow_ops_total",
				Help: "Total diagnosis workflow operations by op and result",
			},
			[]string{"op", "result"},
		)
		workflowOpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "workflow_op_latency_seconds",
				Help:    "Diagnosis workflow operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		settlementOpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_ops_total",
				Help: "Total settlement operations by op and result",
			},
			[]string{"op", "result"},
		)
		settlementOpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_op_latency_seconds",
				Help:    "Settlement operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total document exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		loginTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "logins_total",
				Help: "Total login attempts by result",
			},
			[]string{"result"},
		)

		mailTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mail_total",
				Help: "Total result mails by result",
			},
			[]string{"result"},
		)

		translateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "translate_total",
				Help: "Total translation calls by result",
			},
			[]string{"result"},
		)
		translateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "translate_latency_seconds",
				Help:    "Translation call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			workflowOpTotal,
			workflowOpLatency,
			settlementOpTotal,
			settlementOpLatency,
			exportTotal,
			exportLatency,
			loginTotal,
			mailTotal,
			translateTotal,
			translateLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveWorkflowOp records one diagnosis workflow operation.
func ObserveWorkflowOp(op, result string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if workflowOpTotal != nil {
		workflowOpTotal.WithLabelValues(op, result).Inc()
	}
	if workflowOpLatency != nil {
		workflowOpLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// ObserveSettlementOp records one settlement operation.
func ObserveSettlementOp(op, result string, duration time.Duration) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if settlementOpTotal != nil {
		settlementOpTotal.WithLabelValues(op, result).Inc()
	}
	if settlementOpLatency != nil {
		settlementOpLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// ObserveExport records one document export.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncLogin increments the login attempt counter.
func IncLogin(result string) {
	if result == "" {
		result = resultSuccess
	}
	if loginTotal != nil {
		loginTotal.WithLabelValues(result).Inc()
	}
}

// IncMail increments the result mail counter.
func IncMail(result string) {
	if result == "" {
		result = resultSuccess
	}
	if mailTotal != nil {
		mailTotal.WithLabelValues(result).Inc()
	}
}

// ObserveTranslate records one translation call.
func ObserveTranslate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if translateTotal != nil {
		translateTotal.WithLabelValues(result).Inc()
	}
	if translateLatency != nil {
		translateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
