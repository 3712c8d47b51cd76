package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger operation metrics, exposed on /metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coopledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})

	LedgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coopledger_ledger_operations_total",
		Help: "Ledger operations by outcome",
	}, []string{"operation", "outcome"})

	PaymentsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopledger_payments_allocated_total",
		Help: "Loan payments allocated",
	})

	PeriodSnapshotsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopledger_period_snapshots_created_total",
		Help: "Loan balance snapshots created by month closes",
	})

	LoansDefaulted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coopledger_loans_defaulted_total",
		Help: "Loans flagged defaulted by the overdue sweep",
	})
)

// ObserveOperation records the outcome of a named ledger operation.
func ObserveOperation(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	LedgerOperationsTotal.WithLabelValues(operation, outcome).Inc()
	LogOperation(operation, start, err)
}
