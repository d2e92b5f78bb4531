package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/domain/strategy"
	"github.com/alejandrodnm/predictbot/internal/metrics"
	"github.com/alejandrodnm/predictbot/internal/ports"
)

const (
	DefaultTopMarkets        = 50
	DefaultMinEdge           = 0.05
	DefaultMaxTradesPerCycle = 3
	DefaultMinConfidence     = 0.5
	DefaultMinTradingCapital = 100
	DefaultInitialCapital    = 10000
)

// ErrNoMarkets is returned when the market listing is empty. The cycle is
// aborted before anything is evaluated or written.
var ErrNoMarkets = errors.New("no markets fetched")

// Config holds paper trading settings.
type Config struct {
	Sizing            domain.SizingConfig
	Exit              domain.ExitRule
	Strategy          strategy.Config
	TopMarkets        int     // only the N highest-volume markets are scanned
	MinEdge           float64 // signals need EdgePercent > MinEdge*100
	MaxTradesPerCycle int     // signals considered for execution per cycle
	MinConfidence     float64
	MinTradingCapital float64 // execution stops below this capital
	InitialCapital    float64 // capital of a brand-new ledger
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		Sizing:            domain.DefaultSizingConfig(),
		Exit:              domain.DefaultExitRule(),
		Strategy:          strategy.DefaultConfig(),
		TopMarkets:        DefaultTopMarkets,
		MinEdge:           DefaultMinEdge,
		MaxTradesPerCycle: DefaultMaxTradesPerCycle,
		MinConfidence:     DefaultMinConfidence,
		MinTradingCapital: DefaultMinTradingCapital,
		InitialCapital:    DefaultInitialCapital,
	}
}

// Engine runs paper trading cycles against a market provider and a ledger.
// It is not safe for concurrent use: cycles against one ledger must not overlap.
type Engine struct {
	markets   ports.MarketProvider
	ledger    ports.LedgerStore
	decisions ports.DecisionLog
	notifier  ports.Notifier
	detectors []strategy.Detector
	cfg       Config
	now       func() time.Time
	newRunID  func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDetectors replaces the default detector set.
func WithDetectors(detectors ...strategy.Detector) Option {
	return func(e *Engine) { e.detectors = detectors }
}

// New creates a paper trading engine. notifier may be nil.
func New(
	markets ports.MarketProvider,
	ledger ports.LedgerStore,
	decisions ports.DecisionLog,
	notifier ports.Notifier,
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.TopMarkets <= 0 {
		cfg.TopMarkets = DefaultTopMarkets
	}
	if cfg.MaxTradesPerCycle <= 0 {
		cfg.MaxTradesPerCycle = DefaultMaxTradesPerCycle
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	e := &Engine{
		markets:   markets,
		ledger:    ledger,
		decisions: decisions,
		notifier:  notifier,
		detectors: strategy.DefaultDetectors(cfg.Strategy),
		cfg:       cfg,
		now:       time.Now,
		newRunID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CycleResult contains everything produced by one cycle.
type CycleResult struct {
	RunID     string
	Markets   int // markets in the listing
	Scanned   int // markets fed to the detectors
	Signals   []domain.TradeSignal
	Opened    []domain.Position
	Closed    []domain.Position
	Decisions []domain.Decision
	Ledger    *domain.Ledger
	Duration  time.Duration
}

// Summary converts the result into what notifiers receive.
func (r *CycleResult) Summary() ports.CycleSummary {
	return ports.CycleSummary{
		RunID:     r.RunID,
		Markets:   r.Markets,
		Signals:   r.Signals,
		Opened:    r.Opened,
		Closed:    r.Closed,
		Decisions: r.Decisions,
		Ledger:    r.Ledger,
	}
}

// RunOnce executes a single cycle:
//
//	LOAD → REFRESH_MARKETS → EVALUATE_OPEN → SCAN_SIGNALS → EXECUTE_TOP_K → PERSIST
//
// A load or listing failure aborts the cycle and nothing is written, and so
// does a context cancelled during the scan. Otherwise the ledger is always
// saved, even if nothing changed.
func (pe *Engine) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := pe.now()
	result := &CycleResult{RunID: pe.newRunID()}
	log := slog.With("run_id", result.RunID)

	ledger, err := pe.loadLedger(ctx, start)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("paper.RunOnce: load: %w", err)
	}

	markets, err := pe.markets.FetchMarkets(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		return nil, fmt.Errorf("paper.RunOnce: fetch markets: %w", err)
	}
	if len(markets) == 0 {
		metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		return nil, fmt.Errorf("paper.RunOnce: %w", ErrNoMarkets)
	}
	result.Markets = len(markets)
	log.Info("paper: markets fetched", "count", len(markets))

	result.Closed = pe.EvaluatePositions(ledger, markets, start)

	signals, scanned := pe.ScanSignals(ctx, markets, start)
	if err := ctx.Err(); err != nil {
		// Partial scan: nothing is executed or persisted.
		metrics.CyclesTotal.WithLabelValues("aborted").Inc()
		return nil, fmt.Errorf("paper.RunOnce: scan interrupted after %d markets: %w", scanned, err)
	}
	result.Signals = signals
	result.Scanned = scanned
	metrics.MarketsScanned.Set(float64(scanned))

	opened, decisions := pe.executeTopK(ctx, ledger, signals, result.RunID)
	result.Opened = opened
	result.Decisions = decisions
	result.Ledger = ledger

	if err := pe.ledger.SaveLedger(ctx, ledger); err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return result, fmt.Errorf("paper.RunOnce: save ledger: %w", err)
	}

	observeLedger(ledger)
	result.Duration = pe.now().Sub(start)
	metrics.CycleDuration.Observe(result.Duration.Seconds())
	metrics.CyclesTotal.WithLabelValues("ok").Inc()

	log.Info("paper: cycle complete",
		"signals", len(signals),
		"opened", len(opened),
		"closed", len(result.Closed),
		"open_positions", len(ledger.Positions),
		"capital", fmt.Sprintf("%.2f", ledger.Capital),
		"total_pnl", fmt.Sprintf("%.2f", ledger.TotalPnL),
	)

	if pe.notifier != nil {
		if err := pe.notifier.NotifyCycle(ctx, result.Summary()); err != nil {
			log.Warn("paper: notifier error", "err", err)
		}
	}
	return result, nil
}

// loadLedger returns the persisted ledger, or a fresh one funded with the
// initial capital when none was ever saved.
func (pe *Engine) loadLedger(ctx context.Context, now time.Time) (*domain.Ledger, error) {
	ledger, found, err := pe.ledger.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Info("paper: no ledger found, starting fresh", "capital", pe.cfg.InitialCapital)
		return domain.NewLedger(pe.cfg.InitialCapital, now), nil
	}
	return ledger, nil
}

func observeLedger(l *domain.Ledger) {
	metrics.Capital.Set(l.Capital)
	metrics.Exposure.Set(l.Exposure())
	metrics.OpenPositions.Set(float64(len(l.Positions)))
	metrics.TotalPnL.Set(l.TotalPnL)
}
