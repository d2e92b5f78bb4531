package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 21, 2, 0, 0, 0, time.UTC)

func makeSignal(marketID string, prob float64, side Side) TradeSignal {
	return TradeSignal{
		MarketID:    marketID,
		MarketTitle: "Will " + marketID + " happen?",
		CurrentProb: prob,
		EdgeType:    EdgeResolutionArb,
		FairValue:   0.5,
		EdgePercent: 8,
		Side:        side,
		Confidence:  0.5,
	}
}

func TestLedger_OpenDebitsCapital(t *testing.T) {
	l := NewLedger(10000, t0)

	pos, err := l.OpenPosition(makeSignal("m1", 0.42, SideYes), 500, t0)
	require.NoError(t, err)

	assert.InDelta(t, 9500.0, l.Capital, 1e-9)
	require.Len(t, l.Positions, 1)
	assert.Equal(t, PositionOpen, pos.Status)
	assert.Equal(t, SideYes, pos.Side)
	assert.InDelta(t, 0.42, pos.EntryProb, 1e-12)
	assert.Nil(t, pos.PnL)
	assert.Nil(t, pos.ExitProb)
}

func TestLedger_OpenInsufficientFunds(t *testing.T) {
	l := NewLedger(100, t0)

	_, err := l.OpenPosition(makeSignal("m1", 0.42, SideYes), 150, t0)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 100.0, l.Capital)
	assert.Empty(t, l.Positions)
}

func TestLedger_OpenDuplicateMarketRejected(t *testing.T) {
	l := NewLedger(10000, t0)

	_, err := l.OpenPosition(makeSignal("m1", 0.42, SideYes), 100, t0)
	require.NoError(t, err)

	_, err = l.OpenPosition(makeSignal("m1", 0.45, SideNo), 100, t0.Add(time.Minute))
	require.ErrorIs(t, err, ErrPositionExists)
	assert.InDelta(t, 9900.0, l.Capital, 1e-9)
	assert.Len(t, l.Positions, 1)
}

func TestLedger_CloseCreditsStakePlusPnL(t *testing.T) {
	l := NewLedger(10000, t0)
	pos, err := l.OpenPosition(makeSignal("m1", 0.20, SideYes), 200, t0)
	require.NoError(t, err)

	closed, err := l.ClosePosition("m1", pos.EntryTime, 0.22, 20, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, PositionClosed, closed.Status)
	require.NotNil(t, closed.PnL)
	assert.InDelta(t, 20.0, *closed.PnL, 1e-9)
	assert.InDelta(t, 0.22, *closed.ExitProb, 1e-12)
	assert.Empty(t, l.Positions)
	require.Len(t, l.ClosedPositions, 1)
	assert.InDelta(t, 10020.0, l.Capital, 1e-9)
	assert.InDelta(t, 20.0, l.TotalPnL, 1e-9)
}

func TestLedger_CloseUnknownPosition(t *testing.T) {
	l := NewLedger(10000, t0)
	_, err := l.ClosePosition("nope", t0, 0.5, 0, t0)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLedger_ClosePositionAtWithDuplicateIdentity(t *testing.T) {
	l := NewLedger(8900, t0)
	l.Positions = []Position{
		{MarketID: "m1", Side: SideYes, EntryProb: 0.5, Size: 100, EntryTime: t0, Status: PositionOpen},
		{MarketID: "m1", Side: SideNo, EntryProb: 0.5, Size: 1000, EntryTime: t0, Status: PositionOpen},
	}

	closed, err := l.ClosePositionAt(1, 0.489, 22, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, SideNo, closed.Side)
	assert.Equal(t, 1000.0, closed.Size)

	require.Len(t, l.Positions, 1)
	assert.Equal(t, SideYes, l.Positions[0].Side)
	assert.InDelta(t, 9922, l.Capital, 1e-9)
	assert.InDelta(t, 10000, l.Equity()-l.TotalPnL, 1e-9)
}

func TestLedger_ClosePositionAtOutOfRange(t *testing.T) {
	l := NewLedger(10000, t0)
	_, err := l.ClosePositionAt(0, 0.5, 0, t0)
	assert.ErrorIs(t, err, ErrPositionNotFound)
	_, err = l.ClosePositionAt(-1, 0.5, 0, t0)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestLedger_CapitalConservation(t *testing.T) {
	l := NewLedger(10000, t0)
	start := l.Capital

	stakes := map[string]float64{"a": 500, "b": 250, "c": 1000, "d": 10}
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := l.OpenPosition(makeSignal(id, 0.4, SideYes), stakes[id], t0)
		require.NoError(t, err)
	}

	pnls := map[string]float64{"a": 37.5, "b": -12.25, "c": 0.1}
	returned := 0.0
	for _, id := range []string{"a", "b", "c"} {
		_, err := l.ClosePosition(id, t0, 0.5, pnls[id], t0.Add(time.Hour))
		require.NoError(t, err)
		returned += stakes[id] + pnls[id]
	}

	opened := 500.0 + 250 + 1000 + 10
	assert.InDelta(t, start-opened+returned, l.Capital, 1e-9)
	assert.InDelta(t, 37.5-12.25+0.1, l.TotalPnL, 1e-9)
	// capital + open stakes - realized pnl is the starting capital
	assert.InDelta(t, start, l.Equity()-l.TotalPnL, 1e-9)
}

func TestLedger_CloneIsDeep(t *testing.T) {
	l := NewLedger(1000, t0)
	pos, err := l.OpenPosition(makeSignal("m1", 0.3, SideNo), 100, t0)
	require.NoError(t, err)
	_, err = l.ClosePosition("m1", pos.EntryTime, 0.25, 16.6, t0)
	require.NoError(t, err)

	c := l.Clone()
	*c.ClosedPositions[0].PnL = 999
	c.Capital = 0

	assert.InDelta(t, 16.6, *l.ClosedPositions[0].PnL, 1e-9)
	assert.NotEqual(t, 0.0, l.Capital)
}

func TestUnrealizedPnLPct_YesNormalizedByEntry(t *testing.T) {
	// entry 0.20 → 0.22: (0.22-0.20)/0.20 = 0.10
	pct, ok := UnrealizedPnLPct(SideYes, 0.20, 0.22)
	require.True(t, ok)
	assert.InDelta(t, 0.10, pct, 1e-9)
}

func TestUnrealizedPnLPct_NoNormalizedByEntry(t *testing.T) {
	// NO entered at 0.60, now 0.54: (0.60-0.54)/0.60 = 0.10
	pct, ok := UnrealizedPnLPct(SideNo, 0.60, 0.54)
	require.True(t, ok)
	assert.InDelta(t, 0.10, pct, 1e-9)
}

func TestUnrealizedPnLPct_ZeroEntry(t *testing.T) {
	_, ok := UnrealizedPnLPct(SideYes, 0, 0.5)
	assert.False(t, ok)
}

func TestExitRule_Band(t *testing.T) {
	r := DefaultExitRule()
	assert.True(t, r.ShouldExit(100, 2.01))
	assert.False(t, r.ShouldExit(100, 2.0))
	assert.False(t, r.ShouldExit(100, 0))
	assert.False(t, r.ShouldExit(100, -3.0))
	assert.True(t, r.ShouldExit(100, -3.01))
}

func TestEdgeType_TextRoundTrip(t *testing.T) {
	for _, e := range []EdgeType{EdgeMeanReversion, EdgeResolutionArb, EdgeCorrelationLag} {
		b, err := e.MarshalText()
		require.NoError(t, err)
		var got EdgeType
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, e, got)
	}

	_, err := EdgeType(0).MarshalText()
	assert.Error(t, err)
	_, err = ParseEdgeType("momentum")
	assert.Error(t, err)
}

func TestSideFor(t *testing.T) {
	assert.Equal(t, SideNo, SideFor(0.55, 0.45))
	assert.Equal(t, SideYes, SideFor(0.35, 0.45))
	assert.Equal(t, SideYes, SideFor(0.45, 0.45))
}
