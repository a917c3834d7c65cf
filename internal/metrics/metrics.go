package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "scan_cycles_total", Help: "Completed scan cycles"},
	)
	SignalsCommittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_committed_total", Help: "Signals committed to the ledger"},
		[]string{"symbol", "side"},
	)
	CandidatesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "candidates_rejected_total", Help: "Candidates dropped before commitment"},
		[]string{"symbol", "reason"},
	)
	DataFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "data_faults_total", Help: "Instrument cycles skipped on bad bar data"},
		[]string{"symbol"},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "breaker_state", Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)"},
		[]string{"dependency"},
	)
	AlertFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alert_failures_total", Help: "Alert deliveries dropped after guard exhaustion"},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		ScanCyclesTotal,
		SignalsCommittedTotal,
		CandidatesRejectedTotal,
		DataFaultsTotal,
		BreakerState,
		AlertFailuresTotal,
	)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
