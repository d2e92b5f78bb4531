package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds is returned when a stake exceeds available capital.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPositionExists is returned when the market already has an open position.
	ErrPositionExists = errors.New("market already has an open position")
	// ErrPositionNotFound is returned when closing a position that is not open.
	ErrPositionNotFound = errors.New("open position not found")
)

// Ledger is the paper portfolio: free capital, open and closed positions and
// cumulative realized P&L.
//
// Capital moves only in two ways: -stake when a position opens and
// +(stake + pnl) when it closes. Everything else is derived.
type Ledger struct {
	Capital         float64
	Positions       []Position // open, in entry order
	ClosedPositions []Position // closed, in close order
	TotalPnL        float64
	CreatedAt       time.Time
}

// NewLedger creates an empty ledger funded with initialCapital.
func NewLedger(initialCapital float64, now time.Time) *Ledger {
	return &Ledger{
		Capital:         initialCapital,
		Positions:       []Position{},
		ClosedPositions: []Position{},
		CreatedAt:       now.UTC().Truncate(time.Second),
	}
}

// HasOpenPosition reports whether marketID has an open position.
func (l *Ledger) HasOpenPosition(marketID string) bool {
	for _, p := range l.Positions {
		if p.MarketID == marketID {
			return true
		}
	}
	return false
}

// Exposure returns the sum of the stakes of all open positions.
func (l *Ledger) Exposure() float64 {
	total := 0.0
	for _, p := range l.Positions {
		total += p.Size
	}
	return total
}

// Equity returns capital plus open stakes at cost.
func (l *Ledger) Equity() float64 {
	return l.Capital + l.Exposure()
}

// OpenPosition opens a position for the signal with the given stake and
// debits it from capital. On error the ledger is left untouched.
func (l *Ledger) OpenPosition(sig TradeSignal, stake float64, now time.Time) (Position, error) {
	if stake <= 0 {
		return Position{}, fmt.Errorf("domain.OpenPosition: non-positive stake %.4f", stake)
	}
	if stake > l.Capital {
		return Position{}, fmt.Errorf("domain.OpenPosition: need %.2f, have %.2f: %w", stake, l.Capital, ErrInsufficientFunds)
	}
	if l.HasOpenPosition(sig.MarketID) {
		return Position{}, fmt.Errorf("domain.OpenPosition: %s: %w", sig.MarketID, ErrPositionExists)
	}

	pos := Position{
		MarketID:    sig.MarketID,
		MarketTitle: sig.MarketTitle,
		Side:        sig.Side,
		EntryProb:   sig.CurrentProb,
		Size:        stake,
		EntryTime:   now.UTC().Truncate(time.Second),
		Status:      PositionOpen,
	}

	l.Capital -= stake
	l.Positions = append(l.Positions, pos)
	return pos, nil
}

// ClosePosition closes the first open position matching marketID +
// entryTime. Ledgers written by earlier runs may hold several positions with
// the same identity; callers that know the slot should use ClosePositionAt.
func (l *Ledger) ClosePosition(marketID string, entryTime time.Time, exitProb, pnl float64, now time.Time) (Position, error) {
	for i, p := range l.Positions {
		if p.MarketID == marketID && p.EntryTime.Equal(entryTime) {
			return l.ClosePositionAt(i, exitProb, pnl, now)
		}
	}
	return Position{}, fmt.Errorf("domain.ClosePosition: %s: %w", marketID, ErrPositionNotFound)
}

// ClosePositionAt closes Positions[idx], moves it to ClosedPositions and
// credits stake + pnl back to capital.
func (l *Ledger) ClosePositionAt(idx int, exitProb, pnl float64, now time.Time) (Position, error) {
	if idx < 0 || idx >= len(l.Positions) {
		return Position{}, fmt.Errorf("domain.ClosePositionAt: index %d of %d: %w", idx, len(l.Positions), ErrPositionNotFound)
	}

	pos := l.Positions[idx]
	exitTime := now.UTC().Truncate(time.Second)
	pos.Status = PositionClosed
	pos.ExitProb = &exitProb
	pos.ExitTime = &exitTime
	pos.PnL = &pnl

	l.Positions = append(l.Positions[:idx], l.Positions[idx+1:]...)
	l.ClosedPositions = append(l.ClosedPositions, pos)
	l.Capital += pos.Size + pnl
	l.TotalPnL += pnl
	return pos, nil
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	c := *l
	c.Positions = clonePositions(l.Positions)
	c.ClosedPositions = clonePositions(l.ClosedPositions)
	return &c
}

func clonePositions(in []Position) []Position {
	out := make([]Position, len(in))
	for i, p := range in {
		out[i] = p
		if p.ExitProb != nil {
			v := *p.ExitProb
			out[i].ExitProb = &v
		}
		if p.ExitTime != nil {
			v := *p.ExitTime
			out[i].ExitTime = &v
		}
		if p.PnL != nil {
			v := *p.PnL
			out[i].PnL = &v
		}
	}
	return out
}
