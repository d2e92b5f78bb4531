package ports

import (
	"context"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// CycleSummary is what a notifier receives at the end of a cycle.
type CycleSummary struct {
	RunID     string
	Markets   int
	Signals   []domain.TradeSignal
	Opened    []domain.Position
	Closed    []domain.Position
	Decisions []domain.Decision
	Ledger    *domain.Ledger
}

// Notifier presents cycle results to the user.
type Notifier interface {
	NotifyCycle(ctx context.Context, summary CycleSummary) error
}
