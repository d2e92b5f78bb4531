package domain

import "time"

// Decision is one entry of the append-only decision log: a signal that was
// considered for execution, and whether it was executed.
type Decision struct {
	Timestamp   time.Time
	RunID       string
	MarketID    string
	MarketTitle string
	EdgeType    EdgeType
	EdgePercent float64
	Side        Side
	Confidence  float64
	Executed    bool
	Rationale   string
	SkipReason  string // empty when executed
}

// NewDecision flattens a signal into a decision record.
func NewDecision(sig TradeSignal, executed bool, skipReason, runID string, at time.Time) Decision {
	return Decision{
		Timestamp:   at,
		RunID:       runID,
		MarketID:    sig.MarketID,
		MarketTitle: sig.MarketTitle,
		EdgeType:    sig.EdgeType,
		EdgePercent: sig.EdgePercent,
		Side:        sig.Side,
		Confidence:  sig.Confidence,
		Executed:    executed,
		Rationale:   sig.Rationale,
		SkipReason:  skipReason,
	}
}

// PerformanceStats is the aggregate view over a ledger and its decision log.
type PerformanceStats struct {
	Capital         float64
	TotalPnL        float64
	OpenPositions   int
	ClosedPositions int
	Exposure        float64

	Wins        int
	Losses      int
	WinRate     float64 // percent
	TotalProfit float64
	TotalLoss   float64
	AvgPnL      float64

	// ImpliedStart is capital + exposure - total pnl. It equals the initial
	// capital as long as the ledger was only mutated by open/close.
	ImpliedStart float64

	TotalDecisions int
	Executed       int
	Skipped        int
	ByEdgeType     []EdgeCount // sorted by count desc
}

// EdgeCount is the number of decisions for one edge type tag.
type EdgeCount struct {
	EdgeType string
	Count    int
	Percent  float64
}
