package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by table, operation and result",
		},
		[]string{"table", "op", "result"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Wall time of ledger operations including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)
	Restores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_restores_total",
			Help: "Backup restores attempted after failed operations",
		},
		[]string{"table", "result"},
	)
	Conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_conflicts_total",
			Help: "Optimistic write conflicts observed per table",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(Operations, OperationDuration, Restores, Conflicts)
}

func observe(table, op string, started time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict):
		result = "conflict"
	case errors.Is(err, ErrTransient):
		result = "unavailable"
	default:
		result = "error"
	}
	Operations.WithLabelValues(table, op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
