package notify

import (
	"fmt"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// PrintReport prints the performance report: portfolio summary, closed
// position stats, open positions and the decision history breakdown.
func (c *Console) PrintReport(stats domain.PerformanceStats, open []domain.Position, skippedLines int) {
	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  PREDICTION BOT PERFORMANCE\n")
	fmt.Fprintf(c.out, "========================================================\n\n")

	fmt.Fprintf(c.out, "  --- PORTFOLIO ---\n")
	fmt.Fprintf(c.out, "  Current capital:       M$%.0f\n", stats.Capital)
	fmt.Fprintf(c.out, "  Total P&L:             M$%+.2f\n", stats.TotalPnL)
	fmt.Fprintf(c.out, "  Open positions:        %d (M$%.0f at stake)\n", stats.OpenPositions, stats.Exposure)
	fmt.Fprintf(c.out, "  Closed positions:      %d\n", stats.ClosedPositions)

	if stats.ClosedPositions > 0 {
		fmt.Fprintf(c.out, "\n  --- CLOSED POSITIONS ---\n")
		fmt.Fprintf(c.out, "  Wins:                  %d (%.1f%%)\n", stats.Wins, stats.WinRate)
		fmt.Fprintf(c.out, "  Losses:                %d\n", stats.Losses)
		fmt.Fprintf(c.out, "  Total profit:          M$%+.2f\n", stats.TotalProfit)
		fmt.Fprintf(c.out, "  Total loss:            M$%+.2f\n", stats.TotalLoss)
		fmt.Fprintf(c.out, "  Avg P&L per trade:     M$%+.2f\n", stats.AvgPnL)
	}

	if len(open) > 0 {
		fmt.Fprintf(c.out, "\n  --- OPEN POSITIONS (%d) ---\n", len(open))
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("#", "Market", "Side", "Entry", "Size", "Since")
		for i, p := range open {
			tbl.Append(
				fmt.Sprintf("%d", i+1),
				domain.TruncateTitle(p.MarketTitle, p.MarketID, 60),
				string(p.Side),
				fmt.Sprintf("%.2f%%", p.EntryProb*100),
				fmt.Sprintf("M$%.0f", p.Size),
				p.EntryTime.Format("2006-01-02 15:04"),
			)
		}
		tbl.Render()
	}

	if stats.TotalDecisions > 0 {
		fmt.Fprintf(c.out, "\n  --- DECISION HISTORY ---\n")
		fmt.Fprintf(c.out, "  Total decisions:       %d\n", stats.TotalDecisions)
		fmt.Fprintf(c.out, "  Executed:              %d\n", stats.Executed)
		fmt.Fprintf(c.out, "  Skipped:               %d\n", stats.Skipped)
		fmt.Fprintf(c.out, "  By edge type:\n")
		for _, e := range stats.ByEdgeType {
			fmt.Fprintf(c.out, "    %-16s %d (%.0f%%)\n", e.EdgeType, e.Count, e.Percent)
		}
	}
	if skippedLines > 0 {
		fmt.Fprintf(c.out, "  (%d unreadable log lines ignored)\n", skippedLines)
	}

	if diff := stats.ImpliedStart; diff > 0 {
		fmt.Fprintf(c.out, "\n  Capital + stakes - P&L: M$%.2f (initial capital)\n", diff)
	}
	fmt.Fprintln(c.out)
}
