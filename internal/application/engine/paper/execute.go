package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/metrics"
)

// Skip reasons written to the decision log.
const (
	SkipLowConfidence     = "low confidence"
	SkipInsufficientFunds = "insufficient funds"
	SkipPositionExists    = "position already open"
	SkipExecutionFailed   = "execution failed"
)

// Execute opens a paper position for the signal, sized by fractional Kelly
// against the ledger's current capital. On error the ledger is unchanged;
// domain.ErrInsufficientFunds and domain.ErrPositionExists are wrapped.
func (pe *Engine) Execute(ledger *domain.Ledger, sig domain.TradeSignal, now time.Time) (domain.Position, error) {
	stake := domain.KellyStake(sig.EdgeFraction(), ledger.Capital, pe.cfg.Sizing)
	pos, err := ledger.OpenPosition(sig, stake, now)
	if err != nil {
		return domain.Position{}, fmt.Errorf("paper.Execute: %w", err)
	}
	return pos, nil
}

// executeTopK walks the first MaxTradesPerCycle signals in order. Low
// confidence and failed executions are logged as not executed and the walk
// continues; capital below MinTradingCapital stops it.
func (pe *Engine) executeTopK(ctx context.Context, ledger *domain.Ledger, signals []domain.TradeSignal, runID string) ([]domain.Position, []domain.Decision) {
	candidates := signals
	if len(candidates) > pe.cfg.MaxTradesPerCycle {
		candidates = candidates[:pe.cfg.MaxTradesPerCycle]
	}

	var (
		opened    []domain.Position
		decisions []domain.Decision
	)
	for _, sig := range candidates {
		if sig.Confidence < pe.cfg.MinConfidence {
			slog.Info("paper: skipping low-confidence signal",
				"market", sig.MarketID,
				"confidence", sig.Confidence,
			)
			decisions = append(decisions, pe.logDecision(ctx, sig, false, SkipLowConfidence, runID))
			continue
		}

		if ledger.Capital < pe.cfg.MinTradingCapital {
			slog.Warn("paper: capital below trading floor, stopping execution",
				"capital", fmt.Sprintf("%.2f", ledger.Capital),
				"floor", pe.cfg.MinTradingCapital,
			)
			break
		}

		pos, err := pe.Execute(ledger, sig, pe.now())
		if err != nil {
			reason := SkipExecutionFailed
			switch {
			case errors.Is(err, domain.ErrInsufficientFunds):
				reason = SkipInsufficientFunds
			case errors.Is(err, domain.ErrPositionExists):
				reason = SkipPositionExists
			}
			slog.Warn("paper: execution failed", "market", sig.MarketID, "err", err)
			decisions = append(decisions, pe.logDecision(ctx, sig, false, reason, runID))
			continue
		}

		slog.Info("paper: position opened",
			"market", domain.TruncateTitle(pos.MarketTitle, pos.MarketID, 50),
			"side", pos.Side,
			"entry", pos.EntryProb,
			"stake", fmt.Sprintf("%.2f", pos.Size),
			"edge_type", sig.EdgeType,
		)
		opened = append(opened, pos)
		decisions = append(decisions, pe.logDecision(ctx, sig, true, "", runID))
	}
	return opened, decisions
}

// logDecision appends the decision to the log. A write failure is logged and
// does not stop the cycle.
func (pe *Engine) logDecision(ctx context.Context, sig domain.TradeSignal, executed bool, skipReason, runID string) domain.Decision {
	d := domain.NewDecision(sig, executed, skipReason, runID, pe.now())
	metrics.DecisionsTotal.WithLabelValues(sig.EdgeType.String(), strconv.FormatBool(executed)).Inc()
	if err := pe.decisions.AppendDecision(ctx, d); err != nil {
		slog.Warn("paper: could not append decision", "market", sig.MarketID, "err", err)
	}
	return d
}
