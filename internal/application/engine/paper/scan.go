package paper

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/domain/strategy"
	"github.com/alejandrodnm/predictbot/internal/metrics"
)

// ScanSignals runs the detectors over the TopMarkets highest-volume markets
// and returns the signals whose edge beats MinEdge, in market order and then
// detector order. scanned is the number of markets evaluated.
//
// markets must already be sorted by volume descending. A failed history
// fetch is treated as "no history" for that market. A cancelled ctx stops the
// scan early; RunOnce then discards the cycle.
func (pe *Engine) ScanSignals(ctx context.Context, markets []domain.Market, now time.Time) (signals []domain.TradeSignal, scanned int) {
	top := markets
	if len(top) > pe.cfg.TopMarkets {
		top = top[:pe.cfg.TopMarkets]
	}

	needsHistory := false
	for _, d := range pe.detectors {
		if d.NeedsHistory() {
			needsHistory = true
			break
		}
	}

	minEdgePct := pe.cfg.MinEdge * 100
	for _, m := range top {
		if ctx.Err() != nil {
			slog.Warn("paper: scan interrupted", "scanned", scanned, "err", ctx.Err())
			break
		}
		scanned++

		in := strategy.Input{Market: m}
		if needsHistory {
			in.History = pe.fetchHistory(ctx, m.ID)
		}

		for _, d := range pe.detectors {
			sig, ok := d.Detect(now, in)
			if !ok || sig.EdgePercent <= minEdgePct {
				continue
			}
			metrics.SignalsTotal.WithLabelValues(sig.EdgeType.String()).Inc()
			slog.Debug("paper: signal",
				"market", m.ID,
				"edge_type", sig.EdgeType,
				"edge_pct", sig.EdgePercent,
				"side", sig.Side,
				"confidence", sig.Confidence,
			)
			signals = append(signals, sig)
		}
	}
	return signals, scanned
}

func (pe *Engine) fetchHistory(ctx context.Context, marketID string) []domain.HistoryPoint {
	history, err := pe.markets.FetchHistory(ctx, marketID)
	if err != nil {
		metrics.HistoryFetchErrors.Inc()
		slog.Warn("paper: history fetch failed, treating as no data", "market", marketID, "err", err)
		return nil
	}
	return history
}
