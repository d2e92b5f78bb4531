// Package report aggregates the ledger and the decision log into performance
// statistics.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/ports"
)

// ErrNoLedger is returned when there is nothing to report on yet.
var ErrNoLedger = errors.New("no ledger found")

// Report is the full analyzer output.
type Report struct {
	Stats         domain.PerformanceStats
	OpenPositions []domain.Position
	SkippedLines  int // unreadable decision-log records
}

// Generate loads the ledger and decision log and builds the report.
func Generate(ctx context.Context, ledgers ports.LedgerStore, decisions ports.DecisionLog) (*Report, error) {
	l, found, err := ledgers.LoadLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("report.Generate: load ledger: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("report.Generate: %w", ErrNoLedger)
	}

	decs, skipped, err := decisions.ReadDecisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("report.Generate: read decisions: %w", err)
	}

	return &Report{
		Stats:         Build(l, decs),
		OpenPositions: l.Positions,
		SkippedLines:  skipped,
	}, nil
}

// Build computes the statistics. Sums run on decimals so that long ledgers
// reconcile to the cent; results are rounded to 2 places (rates to 1).
//
// A closed position with pnl > 0 is a win; anything else, breakeven
// included, is a loss.
func Build(l *domain.Ledger, decisions []domain.Decision) domain.PerformanceStats {
	exposure := decimal.Zero
	for _, p := range l.Positions {
		exposure = exposure.Add(decimal.NewFromFloat(p.Size))
	}
	capital := decimal.NewFromFloat(l.Capital)
	totalPnL := decimal.NewFromFloat(l.TotalPnL)

	stats := domain.PerformanceStats{
		Capital:         l.Capital,
		TotalPnL:        l.TotalPnL,
		OpenPositions:   len(l.Positions),
		ClosedPositions: len(l.ClosedPositions),
		Exposure:        exposure.Round(2).InexactFloat64(),
		ImpliedStart:    capital.Add(exposure).Sub(totalPnL).Round(2).InexactFloat64(),
	}

	profit, loss, sum := decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range l.ClosedPositions {
		pnl := decimal.NewFromFloat(p.RealizedPnL())
		sum = sum.Add(pnl)
		if pnl.IsPositive() {
			stats.Wins++
			profit = profit.Add(pnl)
		} else {
			stats.Losses++
			loss = loss.Add(pnl)
		}
	}
	stats.TotalProfit = profit.Round(2).InexactFloat64()
	stats.TotalLoss = loss.Round(2).InexactFloat64()
	if n := len(l.ClosedPositions); n > 0 {
		count := decimal.NewFromInt(int64(n))
		stats.AvgPnL = sum.Div(count).Round(2).InexactFloat64()
		stats.WinRate = decimal.NewFromInt(int64(stats.Wins)).
			Mul(decimal.NewFromInt(100)).
			Div(count).
			Round(1).
			InexactFloat64()
	}

	stats.TotalDecisions = len(decisions)
	byEdge := make(map[string]int)
	for _, d := range decisions {
		if d.Executed {
			stats.Executed++
		}
		byEdge[d.EdgeType.String()]++
	}
	stats.Skipped = stats.TotalDecisions - stats.Executed
	stats.ByEdgeType = edgeBreakdown(byEdge, len(decisions))
	return stats
}

// edgeBreakdown sorts by count desc, then tag asc for a stable order.
func edgeBreakdown(byEdge map[string]int, total int) []domain.EdgeCount {
	out := make([]domain.EdgeCount, 0, len(byEdge))
	for edge, n := range byEdge {
		pct := decimal.NewFromInt(int64(n)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(total))).
			Round(1).
			InexactFloat64()
		out = append(out, domain.EdgeCount{EdgeType: edge, Count: n, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EdgeType < out[j].EdgeType
	})
	return out
}
