package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "requests_unassigned",
			Help: "Submitted requests with no evaluator assigned",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM diagnosis_requests WHERE status = '신청'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "requests_awaiting_answer",
			Help: "Assigned requests still waiting for an evaluator answer",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM diagnosis_requests WHERE status = '평가사배정'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "users_pending_approval",
			Help: "Registered users waiting for admin approval",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM users WHERE NOT approved")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
