package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Counters for the evaluation pipeline. Registered on the default
// registry; the range runner increments them and the optional listener
// serves them.
var (
	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swingmaster_evaluations_total",
		Help: "Ticker-day evaluations performed.",
	})
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swingmaster_transitions_total",
		Help: "Realized state transitions by target state.",
	}, []string{"to_state"})
	DataInsufficientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swingmaster_data_insufficient_total",
		Help: "Evaluations degraded to DATA_INSUFFICIENT.",
	})
	EWScoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swingmaster_ew_score_writes_total",
		Help: "EW score rows written by mode.",
	}, []string{"mode"})
)

// Serve exposes /metrics on addr in the background. Errors are logged,
// not fatal: metrics must never take the pipeline down.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}
