package domain

import "time"

// PositionStatus is the lifecycle of a paper position: open → closed, once.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is a simulated stake on one side of a market.
// Identity is MarketID + EntryTime. Size never changes after entry.
type Position struct {
	MarketID    string
	MarketTitle string
	Side        Side
	EntryProb   float64
	Size        float64 // stake in capital units
	EntryTime   time.Time
	Status      PositionStatus

	// Set only once closed.
	ExitProb *float64
	ExitTime *time.Time
	PnL      *float64
}

// IsOpen reports whether the position is still open.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// RealizedPnL returns the closed P&L, or 0 while the position is open.
func (p Position) RealizedPnL() float64 {
	if p.PnL == nil {
		return 0
	}
	return *p.PnL
}

// UnrealizedPnLPct returns the P&L of a position at the given price as a
// fraction of its stake.
//
// Both sides are normalized by the entry probability, not by the cost of the
// side actually bought:
//
//	YES: (current - entry) / entry
//	NO:  (entry - current) / entry
//
// This amplifies results for positions entered at low probability; ledgers
// written by earlier runs depend on it.
// Returns ok=false when the entry probability is not positive.
func UnrealizedPnLPct(side Side, entryProb, currentProb float64) (pct float64, ok bool) {
	if entryProb <= 0 {
		return 0, false
	}
	if side == SideYes {
		return (currentProb - entryProb) / entryProb, true
	}
	return (entryProb - currentProb) / entryProb, true
}

// ExitRule closes a position once its unrealized P&L leaves the band
// (-StopLoss·stake, +TakeProfit·stake). Both bounds are exclusive.
type ExitRule struct {
	TakeProfit float64 // fraction of stake, e.g. 0.02
	StopLoss   float64 // fraction of stake, positive, e.g. 0.03
}

// DefaultExitRule returns +2% take-profit / -3% stop-loss.
func DefaultExitRule() ExitRule {
	return ExitRule{TakeProfit: 0.02, StopLoss: 0.03}
}

// ShouldExit reports whether a position with the given stake and unrealized
// P&L (in capital units) must be closed.
func (r ExitRule) ShouldExit(stake, pnl float64) bool {
	return pnl > stake*r.TakeProfit || pnl < -stake*r.StopLoss
}
