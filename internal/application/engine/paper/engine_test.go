package paper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictbot/internal/adapters/storage"
	"github.com/alejandrodnm/predictbot/internal/application/engine/paper"
	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/metrics"
	"github.com/alejandrodnm/predictbot/internal/ports"
)

var now = time.Date(2026, 2, 21, 2, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeProvider struct {
	markets      []domain.Market
	err          error
	history      map[string][]domain.HistoryPoint
	historyErr   map[string]error
	historyCalls []string
	fetchCalls   int
	onHistory    func(id string)
}

func (f *fakeProvider) FetchMarkets(context.Context) ([]domain.Market, error) {
	f.fetchCalls++
	return f.markets, f.err
}

func (f *fakeProvider) FetchHistory(_ context.Context, id string) ([]domain.HistoryPoint, error) {
	f.historyCalls = append(f.historyCalls, id)
	if f.onHistory != nil {
		f.onHistory(id)
	}
	if err := f.historyErr[id]; err != nil {
		return nil, err
	}
	return f.history[id], nil
}

type failingLedger struct {
	loadErr error
	saveErr error
	saves   int
}

func (f *failingLedger) LoadLedger(context.Context) (*domain.Ledger, bool, error) {
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return nil, false, nil
}

func (f *failingLedger) SaveLedger(context.Context, *domain.Ledger) error {
	f.saves++
	return f.saveErr
}

type recordingNotifier struct {
	summaries []ports.CycleSummary
}

func (n *recordingNotifier) NotifyCycle(_ context.Context, s ports.CycleSummary) error {
	n.summaries = append(n.summaries, s)
	return nil
}

// --- helpers ---

func market(id string, prob float64, closesIn time.Duration) domain.Market {
	return domain.Market{
		ID:          id,
		Title:       "Market " + id,
		OutcomeType: "BINARY",
		Probability: prob,
		Volume24h:   1000,
		ClosesAt:    now.Add(closesIn),
	}
}

// arbMarket closes in 3 days: with prob 0.42 it yields an 8-point,
// confidence-0.5 resolution-arb signal that clears every filter.
func arbMarket(id string, prob float64) domain.Market {
	return market(id, prob, 3*24*time.Hour)
}

// spikeHistory: 9 hourly samples at 0.05 then 0.95 at now.
// Mean reversion fires with edge ≈ 73.6 points, side NO, confidence 0.8.
func spikeHistory() []domain.HistoryPoint {
	h := make([]domain.HistoryPoint, 10)
	for i := range h {
		p := 0.05
		if i == 9 {
			p = 0.95
		}
		h[i] = domain.HistoryPoint{Timestamp: now.Add(-time.Duration(9-i) * time.Hour), Probability: p}
	}
	return h
}

func newEngine(p *fakeProvider, store *storage.MemoryStore, cfg paper.Config, opts ...paper.Option) *paper.Engine {
	opts = append([]paper.Option{paper.WithClock(func() time.Time { return now })}, opts...)
	return paper.New(p, store, store, nil, cfg, opts...)
}

func seededStore(t *testing.T, capital float64, positions ...domain.Position) *storage.MemoryStore {
	t.Helper()
	l := domain.NewLedger(capital, now.Add(-48*time.Hour))
	l.Positions = append(l.Positions, positions...)
	return storage.NewMemoryStore(l)
}

func openPosition(id string, side domain.Side, entry, size float64) domain.Position {
	return domain.Position{
		MarketID:    id,
		MarketTitle: "Market " + id,
		Side:        side,
		EntryProb:   entry,
		Size:        size,
		EntryTime:   now.Add(-24 * time.Hour),
		Status:      domain.PositionOpen,
	}
}

func decisions(t *testing.T, store *storage.MemoryStore) []domain.Decision {
	t.Helper()
	d, _, err := store.ReadDecisions(context.Background())
	require.NoError(t, err)
	return d
}

// --- RunOnce ---

func TestRunOnce_FreshLedgerOpensResolutionArb(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("m1", 0.42)}}
	store := storage.NewMemoryStore(nil)
	notifier := &recordingNotifier{}
	e := paper.New(p, store, store, notifier, paper.DefaultConfig(),
		paper.WithClock(func() time.Time { return now }))

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Markets)
	assert.Equal(t, 1, res.Scanned)

	require.Len(t, res.Opened, 1)
	pos := res.Opened[0]
	assert.Equal(t, domain.SideYes, pos.Side)
	assert.InDelta(t, 0.42, pos.EntryProb, 1e-9)
	// 10000 × 2 × 0.08 × 0.25 = 400
	assert.InDelta(t, 400, pos.Size, 1e-6)

	saved, found, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 9600, saved.Capital, 1e-6)
	assert.Len(t, saved.Positions, 1)
	assert.Equal(t, now, saved.CreatedAt)

	logged := decisions(t, store)
	require.Len(t, logged, 1)
	assert.True(t, logged[0].Executed)
	assert.Equal(t, res.RunID, logged[0].RunID)
	assert.Equal(t, domain.EdgeResolutionArb, logged[0].EdgeType)

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, res.RunID, notifier.summaries[0].RunID)
	assert.Len(t, notifier.summaries[0].Opened, 1)
}

func TestRunOnce_MeanReversionSignalExecutesCapped(t *testing.T) {
	p := &fakeProvider{
		markets: []domain.Market{market("spike", 0.95, 90*24*time.Hour)},
		history: map[string][]domain.HistoryPoint{"spike": spikeHistory()},
	}
	store := storage.NewMemoryStore(nil)

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Signals, 1)
	assert.Equal(t, domain.EdgeMeanReversion, res.Signals[0].EdgeType)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, domain.SideNo, res.Opened[0].Side)
	assert.Equal(t, 1000.0, res.Opened[0].Size, "capped at max position size")
	assert.InDelta(t, 0.95, res.Opened[0].EntryProb, 1e-9)
}

func TestRunOnce_ListingErrorAbortsWithoutWriting(t *testing.T) {
	p := &fakeProvider{err: errors.New("connection refused")}
	store := seededStore(t, 10000, openPosition("m1", domain.SideYes, 0.20, 100))
	before := testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("aborted"))

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, store.Saves())
	assert.Empty(t, decisions(t, store))
	assert.Empty(t, p.historyCalls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CyclesTotal.WithLabelValues("aborted")))
}

func TestRunOnce_EmptyListingAborts(t *testing.T) {
	p := &fakeProvider{}
	store := storage.NewMemoryStore(nil)

	_, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, paper.ErrNoMarkets)
	assert.Zero(t, store.Saves())
}

func TestRunOnce_CorruptLedgerIsFatal(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("m1", 0.42)}}
	ledger := &failingLedger{loadErr: storage.ErrCorruptLedger}
	store := storage.NewMemoryStore(nil)

	e := paper.New(p, ledger, store, nil, paper.DefaultConfig())
	_, err := e.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCorruptLedger)
	assert.Zero(t, p.fetchCalls)
	assert.Zero(t, ledger.saves)
}

func TestRunOnce_SaveFailureReturnsError(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("m1", 0.42)}}
	ledger := &failingLedger{saveErr: errors.New("disk full")}
	store := storage.NewMemoryStore(nil)

	e := paper.New(p, ledger, store, nil, paper.DefaultConfig(),
		paper.WithClock(func() time.Time { return now }))
	res, err := e.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save ledger")
	require.NotNil(t, res)
	assert.Len(t, res.Opened, 1)
}

func TestRunOnce_PersistsEvenWithoutSignals(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{market("far", 0.5, 60*24*time.Hour)}}
	store := storage.NewMemoryStore(nil)

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Signals)
	assert.Equal(t, 1, store.Saves())

	l, found, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 10000.0, l.Capital)
}

func TestRunOnce_TakeProfitScenario(t *testing.T) {
	// YES entered at 0.20, now 0.22: pnl_pct = 0.10 > 0.02 → close with pnl = 10
	p := &fakeProvider{markets: []domain.Market{market("m1", 0.22, 60*24*time.Hour)}}
	store := seededStore(t, 9900, openPosition("m1", domain.SideYes, 0.20, 100))

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Closed, 1)
	c := res.Closed[0]
	require.NotNil(t, c.PnL)
	assert.InDelta(t, 10, *c.PnL, 1e-9)
	assert.InDelta(t, 0.22, *c.ExitProb, 1e-9)
	assert.Equal(t, now, *c.ExitTime)

	l, _, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Empty(t, l.Positions)
	require.Len(t, l.ClosedPositions, 1)
	assert.InDelta(t, 10010, l.Capital, 1e-9)
	assert.InDelta(t, 10, l.TotalPnL, 1e-9)
}

func TestRunOnce_HistoryErrorIsNoData(t *testing.T) {
	p := &fakeProvider{
		markets: []domain.Market{
			market("broken", 0.95, 90*24*time.Hour),
			market("spike", 0.95, 90*24*time.Hour),
		},
		history:    map[string][]domain.HistoryPoint{"spike": spikeHistory(), "broken": spikeHistory()},
		historyErr: map[string]error{"broken": errors.New("timeout")},
	}
	store := storage.NewMemoryStore(nil)
	before := testutil.ToFloat64(metrics.HistoryFetchErrors)

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Signals, 1)
	assert.Equal(t, "spike", res.Signals[0].MarketID)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HistoryFetchErrors))
}

func TestRunOnce_CancelDuringScanDiscardsCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeProvider{
		markets: []domain.Market{arbMarket("a", 0.42), arbMarket("b", 0.42), arbMarket("c", 0.42)},
		onHistory: func(id string) {
			if id == "a" {
				cancel()
			}
		},
	}
	store := seededStore(t, 9900, openPosition("tp", domain.SideYes, 0.20, 100))
	p.markets = append(p.markets, market("tp", 0.22, 60*24*time.Hour))

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, []string{"a"}, p.historyCalls)
	assert.Zero(t, store.Saves())
	assert.Empty(t, decisions(t, store))

	l, _, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Len(t, l.Positions, 1, "take-profit close is not persisted")
	assert.Equal(t, 9900.0, l.Capital)
}

// --- ScanSignals ---

func TestScanSignals_OnlyTopMarkets(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{
		arbMarket("a", 0.42), arbMarket("b", 0.42), arbMarket("c", 0.42),
	}}
	cfg := paper.DefaultConfig()
	cfg.TopMarkets = 2

	signals, scanned := newEngine(p, storage.NewMemoryStore(nil), cfg).ScanSignals(context.Background(), p.markets, now)
	assert.Equal(t, 2, scanned)
	assert.Equal(t, []string{"a", "b"}, p.historyCalls)
	require.Len(t, signals, 2)
	assert.Equal(t, "a", signals[0].MarketID)
	assert.Equal(t, "b", signals[1].MarketID)
}

func TestScanSignals_EdgeMustBeatThreshold(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{
		arbMarket("edge2", 0.48),  // 2 points
		arbMarket("edge5", 0.45),  // exactly 5 points: not strictly above
		arbMarket("edge10", 0.60), // 10 points
	}}

	signals, _ := newEngine(p, storage.NewMemoryStore(nil), paper.DefaultConfig()).ScanSignals(context.Background(), p.markets, now)
	require.Len(t, signals, 1)
	assert.Equal(t, "edge10", signals[0].MarketID)
	assert.Equal(t, domain.SideNo, signals[0].Side)
}

// --- execution ---

func TestExecute_KellyScenario(t *testing.T) {
	e := newEngine(&fakeProvider{}, storage.NewMemoryStore(nil), paper.DefaultConfig())
	l := domain.NewLedger(10000, now)

	sig := domain.TradeSignal{MarketID: "m", Side: domain.SideYes, CurrentProb: 0.4, EdgePercent: 10, EdgeType: domain.EdgeMeanReversion}
	pos, err := e.Execute(l, sig, now)
	require.NoError(t, err)
	assert.InDelta(t, 500, pos.Size, 1e-9)
	assert.InDelta(t, 9500, l.Capital, 1e-9)

	_, err = e.Execute(l, sig, now)
	assert.ErrorIs(t, err, domain.ErrPositionExists)
	assert.InDelta(t, 9500, l.Capital, 1e-9)
}

func TestRunOnce_ConsidersAtMostTopK(t *testing.T) {
	var markets []domain.Market
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		markets = append(markets, arbMarket(id, 0.42))
	}
	p := &fakeProvider{markets: markets}
	store := storage.NewMemoryStore(nil)

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Signals, 5)
	assert.Len(t, res.Opened, 3)
	assert.Len(t, decisions(t, store), 3)
}

func TestRunOnce_LowConfidenceLoggedNotExecuted(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("m1", 0.42)}}
	store := storage.NewMemoryStore(nil)
	cfg := paper.DefaultConfig()
	cfg.MinConfidence = 0.6

	res, err := newEngine(p, store, cfg).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Opened)

	logged := decisions(t, store)
	require.Len(t, logged, 1)
	assert.False(t, logged[0].Executed)
	assert.Equal(t, paper.SkipLowConfidence, logged[0].SkipReason)
}

func TestRunOnce_CapitalFloorStopsExecution(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("a", 0.42), arbMarket("b", 0.42)}}
	store := seededStore(t, 50)

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Signals, 2)
	assert.Empty(t, res.Opened)
	assert.Empty(t, decisions(t, store))
	assert.Equal(t, 1, store.Saves())
}

func TestRunOnce_DuplicateMarketLoggedAndSkipped(t *testing.T) {
	// open position on "a" sits inside the exit band, so it stays open
	p := &fakeProvider{markets: []domain.Market{arbMarket("a", 0.42), arbMarket("b", 0.42)}}
	store := seededStore(t, 9900, openPosition("a", domain.SideYes, 0.42, 100))

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)
	assert.Equal(t, "b", res.Opened[0].MarketID)

	logged := decisions(t, store)
	require.Len(t, logged, 2)
	assert.False(t, logged[0].Executed)
	assert.Equal(t, paper.SkipPositionExists, logged[0].SkipReason)
	assert.True(t, logged[1].Executed)
}

func TestRunOnce_InsufficientFundsContinues(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{arbMarket("a", 0.42)}}
	store := seededStore(t, 8)
	cfg := paper.DefaultConfig()
	cfg.MinTradingCapital = 5 // min stake 10 > capital 8

	res, err := newEngine(p, store, cfg).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Opened)

	logged := decisions(t, store)
	require.Len(t, logged, 1)
	assert.False(t, logged[0].Executed)
	assert.Equal(t, paper.SkipInsufficientFunds, logged[0].SkipReason)

	l, _, err := store.LoadLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8.0, l.Capital)
}

// --- EvaluatePositions ---

func TestEvaluatePositions_Rules(t *testing.T) {
	e := newEngine(&fakeProvider{}, storage.NewMemoryStore(nil), paper.DefaultConfig())

	l := domain.NewLedger(0, now)
	l.Positions = []domain.Position{
		openPosition("tp", domain.SideYes, 0.20, 100),   // 0.22 → +10
		openPosition("sl", domain.SideNo, 0.50, 100),    // 0.52 → -4
		openPosition("hold", domain.SideYes, 0.50, 100), // 0.505 → +1
		openPosition("gone", domain.SideYes, 0.10, 100), // not in snapshot
		openPosition("zero", domain.SideYes, 0.0, 100),  // skipped
		openPosition("edge", domain.SideNo, 0.50, 100),  // 0.51 → -2, inside band
	}
	snapshot := []domain.Market{
		market("tp", 0.22, 0), market("sl", 0.52, 0), market("hold", 0.505, 0),
		market("zero", 0.5, 0), market("edge", 0.51, 0),
	}

	closed := e.EvaluatePositions(l, snapshot, now)
	require.Len(t, closed, 2)
	assert.Equal(t, "tp", closed[0].MarketID)
	assert.InDelta(t, 10, *closed[0].PnL, 1e-9)
	assert.Equal(t, "sl", closed[1].MarketID)
	assert.InDelta(t, -4, *closed[1].PnL, 1e-9)

	open := make([]string, 0, len(l.Positions))
	for _, p := range l.Positions {
		open = append(open, p.MarketID)
	}
	assert.Equal(t, []string{"hold", "gone", "zero", "edge"}, open)
	// capital: 0 + (100+10) + (100-4)
	assert.InDelta(t, 206, l.Capital, 1e-9)
	assert.InDelta(t, 6, l.TotalPnL, 1e-9)
}

func TestEvaluatePositions_SameIdentityClosesTheRightSlot(t *testing.T) {
	// Older ledgers can hold two positions on one market with one entry time.
	// NO moves +22 (take profit), YES moves -2.2 (inside the band).
	e := newEngine(&fakeProvider{}, storage.NewMemoryStore(nil), paper.DefaultConfig())

	l := domain.NewLedger(8900, now)
	l.Positions = []domain.Position{
		openPosition("m1", domain.SideYes, 0.50, 100),
		openPosition("m1", domain.SideNo, 0.50, 1000),
	}

	closed := e.EvaluatePositions(l, []domain.Market{market("m1", 0.489, 0)}, now)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.SideNo, closed[0].Side)
	assert.Equal(t, 1000.0, closed[0].Size)
	assert.InDelta(t, 22, *closed[0].PnL, 1e-9)

	require.Len(t, l.Positions, 1)
	assert.Equal(t, domain.SideYes, l.Positions[0].Side)
	assert.InDelta(t, 9922, l.Capital, 1e-9)
	assert.InDelta(t, 10000, l.Capital+l.Exposure()-l.TotalPnL, 1e-9)
}

func TestEvaluatePositions_Idempotent(t *testing.T) {
	e := newEngine(&fakeProvider{}, storage.NewMemoryStore(nil), paper.DefaultConfig())

	l := domain.NewLedger(1000, now)
	l.Positions = []domain.Position{
		openPosition("tp", domain.SideYes, 0.20, 100),
		openPosition("hold", domain.SideYes, 0.50, 100),
	}
	snapshot := []domain.Market{market("tp", 0.22, 0), market("hold", 0.505, 0)}

	first := e.EvaluatePositions(l, snapshot, now)
	afterFirst := l.Clone()
	second := e.EvaluatePositions(l, snapshot, now)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, afterFirst, l)
}

func TestRunOnce_CapitalConservation(t *testing.T) {
	p := &fakeProvider{markets: []domain.Market{
		market("tp", 0.22, 60*24*time.Hour),
		arbMarket("a", 0.42),
		arbMarket("b", 0.58),
	}}
	store := seededStore(t, 9900, openPosition("tp", domain.SideYes, 0.20, 100))

	res, err := newEngine(p, store, paper.DefaultConfig()).RunOnce(context.Background())
	require.NoError(t, err)

	l := res.Ledger
	// capital + open stakes - realized pnl == initial capital (10000)
	assert.InDelta(t, 10000, l.Capital+l.Exposure()-l.TotalPnL, 1e-9)
}
