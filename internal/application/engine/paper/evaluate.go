package paper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/metrics"
)

// EvaluatePositions marks every open position to the latest snapshot and
// closes those whose P&L left the take-profit / stop-loss band.
// Positions whose market is missing from the snapshot stay open.
// Running it twice on the same snapshot closes nothing the second time.
func (pe *Engine) EvaluatePositions(ledger *domain.Ledger, markets []domain.Market, now time.Time) []domain.Position {
	index := domain.IndexByID(markets)

	// Closing mutates ledger.Positions: iterate a copy and close by slot, not
	// by identity (market_id + entry_time may repeat in older ledgers).
	open := make([]domain.Position, len(ledger.Positions))
	copy(open, ledger.Positions)

	var closed []domain.Position
	for i, pos := range open {
		m, ok := index[pos.MarketID]
		if !ok {
			continue
		}

		pct, ok := domain.UnrealizedPnLPct(pos.Side, pos.EntryProb, m.Probability)
		if !ok {
			slog.Warn("paper: skipping position with non-positive entry probability",
				"market", pos.MarketID,
				"entry_prob", pos.EntryProb,
			)
			continue
		}

		pnl := pos.Size * pct
		if !pe.cfg.Exit.ShouldExit(pos.Size, pnl) {
			continue
		}

		c, err := ledger.ClosePositionAt(i-len(closed), m.Probability, pnl, now)
		if err != nil {
			slog.Warn("paper: close failed", "market", pos.MarketID, "err", err)
			continue
		}

		reason := "take_profit"
		if pnl < 0 {
			reason = "stop_loss"
		}
		metrics.PositionsClosedTotal.WithLabelValues(reason).Inc()
		slog.Info("paper: position closed",
			"market", domain.TruncateTitle(c.MarketTitle, c.MarketID, 50),
			"side", c.Side,
			"entry", c.EntryProb,
			"exit", m.Probability,
			"pnl", fmt.Sprintf("%.2f", pnl),
			"reason", reason,
		)
		closed = append(closed, c)
	}
	return closed
}
