// Package metrics provides Prometheus instrumentation for the paper-trading engine.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	// CyclesTotal counts engine cycles by outcome: ok, aborted, error.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictbot_cycles_total",
		Help: "Total number of trading cycles run",
	}, []string{"result"})

	// CycleDuration tracks the wall time of a full cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictbot_cycle_duration_seconds",
		Help:    "Trading cycle duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	// MarketsScanned is the number of markets fed to the detectors in the last cycle.
	MarketsScanned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictbot_markets_scanned",
		Help: "Markets scanned in the last cycle",
	})

	// SignalsTotal counts detected signals above the edge threshold, by edge type.
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictbot_signals_total",
		Help: "Trade signals detected",
	}, []string{"edge_type"})

	// DecisionsTotal counts logged decisions by edge type and whether they were executed.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictbot_decisions_total",
		Help: "Decisions written to the decision log",
	}, []string{"edge_type", "executed"})

	// PositionsClosedTotal counts closed positions by exit reason.
	PositionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictbot_positions_closed_total",
		Help: "Positions closed by the exit rule",
	}, []string{"reason"})

	// HistoryFetchErrors counts history fetches treated as "no data".
	HistoryFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "predictbot_history_fetch_errors_total",
		Help: "Failed probability history fetches",
	})

	// Capital is the free capital after the last persisted cycle.
	Capital = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictbot_capital",
		Help: "Free paper capital",
	})

	// Exposure is the sum of open stakes.
	Exposure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictbot_exposure",
		Help: "Sum of stakes of open positions",
	})

	// OpenPositions is the number of open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictbot_open_positions",
		Help: "Number of open paper positions",
	})

	// TotalPnL is the cumulative realized P&L.
	TotalPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "predictbot_total_pnl",
		Help: "Cumulative realized P&L",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push sends every registered metric to a Pushgateway under the given job.
// Single runs (once/demo) exit before a scrape could happen, so they push.
func Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx); err != nil {
		return fmt.Errorf("metrics.Push: %w", err)
	}
	return nil
}
