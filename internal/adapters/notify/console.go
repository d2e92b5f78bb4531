package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/ports"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	now   func() time.Time
}

// NewConsole crea un notificador que escribe a stdout.
// table=true imprime la tabla de señales además de la línea compacta.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table, now: time.Now}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table, now: time.Now}
}

// NotifyCycle imprime el resumen del ciclo: una línea compacta y, si hubo
// señales y el modo tabla está activo, el detalle de cada una.
func (c *Console) NotifyCycle(_ context.Context, s ports.CycleSummary) error {
	c.printCompact(s)
	if c.table && len(s.Signals) > 0 {
		c.printSignals(s)
	}
	if len(s.Opened) > 0 || len(s.Closed) > 0 {
		c.printMoves(s)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(s ports.CycleSummary) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → %d signals | +%d open | %d closed",
		c.now().Format("15:04:05"), s.Markets, len(s.Signals), len(s.Opened), len(s.Closed))

	if l := s.Ledger; l != nil {
		fmt.Fprintf(&sb, " | pos %d | cap M$%.0f | pnl M$%+.2f", len(l.Positions), l.Capital, l.TotalPnL)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printSignals imprime la tabla de señales con la acción tomada para cada una.
func (c *Console) printSignals(s ports.CycleSummary) {
	actions := actionsByMarket(s.Decisions)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Edge", "Market", "Side", "Cur", "Fair", "Edge pts", "Conf", "Action")
	for i, sig := range s.Signals {
		action, ok := actions[actionKey(sig.MarketID, sig.EdgeType)]
		if !ok {
			action = "-"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			sig.EdgeType.String(),
			domain.TruncateTitle(sig.MarketTitle, sig.MarketID, 40),
			string(sig.Side),
			fmt.Sprintf("%.1f%%", sig.CurrentProb*100),
			fmt.Sprintf("%.1f%%", sig.FairValue*100),
			fmt.Sprintf("%.1f", sig.EdgePercent),
			fmt.Sprintf("%.2f", sig.Confidence),
			action,
		)
	}
	table.Render()
}

// printMoves lista las posiciones abiertas y cerradas en el ciclo.
func (c *Console) printMoves(s ports.CycleSummary) {
	for _, p := range s.Opened {
		fmt.Fprintf(c.out, "  + %-3s %s @ %.1f%% stake M$%.0f\n",
			p.Side, domain.TruncateTitle(p.MarketTitle, p.MarketID, 50), p.EntryProb*100, p.Size)
	}
	for _, p := range s.Closed {
		exit := p.EntryProb
		if p.ExitProb != nil {
			exit = *p.ExitProb
		}
		fmt.Fprintf(c.out, "  - %-3s %s %.1f%% → %.1f%% pnl M$%+.2f\n",
			p.Side, domain.TruncateTitle(p.MarketTitle, p.MarketID, 50), p.EntryProb*100, exit*100, p.RealizedPnL())
	}
}

func actionKey(marketID string, edge domain.EdgeType) string {
	return marketID + "|" + edge.String()
}

func actionsByMarket(decisions []domain.Decision) map[string]string {
	out := make(map[string]string, len(decisions))
	for _, d := range decisions {
		action := "EXECUTED"
		if !d.Executed {
			action = "skip"
			if d.SkipReason != "" {
				action = "skip: " + d.SkipReason
			}
		}
		out[actionKey(d.MarketID, d.EdgeType)] = action
	}
	return out
}
