package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// METRICS - Failures are never silent; each becomes a counter
// ═══════════════════════════════════════════════════════════════════════════════

var (
	SignalsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_signals_ingested_total",
		Help: "Raw signals received from source adapters",
	}, []string{"source"})

	SignalsDeduped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_signals_deduped_total",
		Help: "Signals suppressed by a dedup window",
	}, []string{"window"})

	SignalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_signals_dropped_total",
		Help: "Signals dropped before scoring",
	}, []string{"reason"})

	MalformedPayloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_malformed_payloads_total",
		Help: "Vendor payloads the adapter could not parse",
	}, []string{"source"})

	SnapshotErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_snapshot_errors_total",
		Help: "Snapshot provider fetch failures",
	}, []string{"provider"})

	GateVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_gate_verdicts_total",
		Help: "Gate evaluations by gate and verdict",
	}, []string{"gate", "status"})

	CandidatesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_candidates_scored_total",
		Help: "Candidates scored by resulting tier",
	}, []string{"tier"})

	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_trades_executed_total",
		Help: "Buy/sell fills by chain and side",
	}, []string{"chain", "side"})

	RiskDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphaflow_risk_denials_total",
		Help: "Trades denied by the risk manager",
	}, []string{"reason"})

	MonitorSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alphaflow_monitor_skips_total",
		Help: "Monitor poll cycles skipped due to missing snapshot data",
	})
)

// Serve exposes /metrics on addr. No-op when addr is empty.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("📊 Metrics listener started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("Metrics listener stopped")
		}
	}()
}
