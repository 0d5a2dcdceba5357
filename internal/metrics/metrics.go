// Package metrics registers the Prometheus collectors exposed by the decision core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Kernel decisions by action kind and reason or tag"},
		[]string{"symbol", "kind", "label"},
	)
	OrdersSimulatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_simulated_total", Help: "Orders pushed through the execution simulator"},
		[]string{"symbol", "type"},
	)
	PartialFillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "partial_fills_total", Help: "Simulated orders that filled below requested size"},
		[]string{"symbol"},
	)
	EntriesPacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "entries_paced_total", Help: "Entry actions suppressed by trade pacing guards"},
		[]string{"symbol", "guard"},
	)
	BacktestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Backtest runs by terminal state"},
		[]string{"state"},
	)
	LabelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "labels_total", Help: "Triple-barrier labels generated by primary class"},
		[]string{"symbol", "class"},
	)
	ArtifactWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "artifact_write_failures_total", Help: "Best-effort artifact writes that failed"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal,
		OrdersSimulatedTotal,
		PartialFillsTotal,
		EntriesPacedTotal,
		BacktestRunsTotal,
		LabelsTotal,
		ArtifactWriteFailures,
	)
}

// Serve exposes /metrics on addr and returns the server for shutdown.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
