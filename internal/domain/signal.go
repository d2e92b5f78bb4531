package domain

import (
	"fmt"
	"time"
)

// EdgeType identifies the detector that produced a signal.
type EdgeType int

const (
	EdgeMeanReversion EdgeType = iota + 1
	EdgeResolutionArb
	EdgeCorrelationLag // declared, no detector logic exists yet
)

// String returns the tag written to the decision log.
func (e EdgeType) String() string {
	switch e {
	case EdgeMeanReversion:
		return "mean_reversion"
	case EdgeResolutionArb:
		return "resolution_arb"
	case EdgeCorrelationLag:
		return "correlation_lag"
	default:
		return "unknown"
	}
}

// ParseEdgeType is the inverse of EdgeType.String.
func ParseEdgeType(s string) (EdgeType, error) {
	switch s {
	case "mean_reversion":
		return EdgeMeanReversion, nil
	case "resolution_arb":
		return EdgeResolutionArb, nil
	case "correlation_lag":
		return EdgeCorrelationLag, nil
	}
	return 0, fmt.Errorf("domain.ParseEdgeType: unknown edge type %q", s)
}

// MarshalText lets EdgeType travel as its string tag in JSON and YAML.
func (e EdgeType) MarshalText() ([]byte, error) {
	if e < EdgeMeanReversion || e > EdgeCorrelationLag {
		return nil, fmt.Errorf("domain.EdgeType: invalid value %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText parses a string tag.
func (e *EdgeType) UnmarshalText(b []byte) error {
	v, err := ParseEdgeType(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Side is the outcome a position bets on.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is YES or NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// TradeSignal describes a believed mispricing found by one detector.
// It is never persisted as such; the decision log stores a flattened copy.
type TradeSignal struct {
	MarketID    string
	MarketTitle string
	CurrentProb float64
	EdgeType    EdgeType
	FairValue   float64
	EdgePercent float64 // |current - fair| in percentage points, always >= 0
	Side        Side
	Confidence  float64 // 0-1
	Rationale   string
	DetectedAt  time.Time
}

// EdgeFraction returns the edge as a probability fraction (EdgePercent / 100).
func (s TradeSignal) EdgeFraction() float64 {
	return s.EdgePercent / 100
}

// SideFor picks the side betting on a move of current toward fair:
// NO when the market is above fair value, YES otherwise.
func SideFor(current, fair float64) Side {
	if current > fair {
		return SideNo
	}
	return SideYes
}
