package resilience

import "github.com/prometheus/client_golang/prometheus"

// Collectors are labelled by target: the ledger backend ("sheets",
// "workbook", "postgres") for breakers, "ledger" for adapter retries.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "store_breaker_state",
		Help: "Ledger store breaker state: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_breaker_transitions_total",
		Help: "Ledger store breaker state changes.",
	}, []string{"target", "from", "to"})
	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_retry_attempts_total",
		Help: "Store call attempts made inside retry loops, by outcome.",
	}, []string{"target", "result"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, RetryAttempts)
}
