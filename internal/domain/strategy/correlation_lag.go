package strategy

import (
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// CorrelationLag is the placeholder for the "related markets repricing at
// different speeds" edge. No logic exists for it: Detect never fires and the
// detector is left out of DefaultDetectors.
type CorrelationLag struct{}

func (CorrelationLag) Edge() domain.EdgeType { return domain.EdgeCorrelationLag }

func (CorrelationLag) NeedsHistory() bool { return false }

// Implemented reports false until a correlation model exists.
func (CorrelationLag) Implemented() bool { return false }

// Detect always reports no signal.
func (CorrelationLag) Detect(time.Time, Input) (domain.TradeSignal, bool) {
	return domain.TradeSignal{}, false
}
