package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/predictbot/config"
	"github.com/alejandrodnm/predictbot/internal/adapters/demo"
	"github.com/alejandrodnm/predictbot/internal/adapters/notify"
	"github.com/alejandrodnm/predictbot/internal/adapters/storage"
	"github.com/alejandrodnm/predictbot/internal/application/engine"
	"github.com/alejandrodnm/predictbot/internal/application/engine/paper"
	"github.com/alejandrodnm/predictbot/internal/application/report"
	"github.com/alejandrodnm/predictbot/internal/domain"
	"github.com/alejandrodnm/predictbot/internal/domain/strategy"
	"github.com/alejandrodnm/predictbot/internal/metrics"
	"github.com/alejandrodnm/predictbot/internal/ports"
)

const stopFile = "STOP"

func runOnce(ctx context.Context, cfg *config.Config, provider ports.MarketProvider, st *stores, notifier *notify.Console) error {
	pe := paper.New(provider, st.ledger, st.decisions, notifier, paperConfig(cfg))
	_, err := pe.RunOnce(ctx)
	pushMetrics(ctx, cfg.Metrics)
	return err
}

func runLoop(ctx context.Context, cfg *config.Config, provider ports.MarketProvider, st *stores, notifier *notify.Console, metricsAddr string) error {
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics server stopped", "err", err)
			}
		}()
		defer srv.Close()
		slog.Info("serving metrics", "addr", metricsAddr)
	}

	pe := paper.New(provider, st.ledger, st.decisions, notifier, paperConfig(cfg))

	slog.Info("loop started, press Ctrl+C or create STOP file to exit", "interval", cfg.CheckInterval())
	return engine.RunLoop(ctx, engine.LoopConfig{Interval: cfg.CheckInterval(), StopFile: stopFile}, func(ctx context.Context) error {
		_, err := pe.RunOnce(ctx)
		pushMetrics(ctx, cfg.Metrics)
		return err
	})
}

// runDemo corre un ciclo normal contra mercados sintéticos. El ledger real
// solo se lee: el ciclo trabaja sobre una copia en memoria.
func runDemo(ctx context.Context, cfg *config.Config, st *stores, notifier *notify.Console) error {
	slog.Info("=== DEMO MODE: synthetic markets, in-memory ledger ===")

	seed, found, err := st.ledger.LoadLedger(ctx)
	if err != nil {
		return fmt.Errorf("runDemo: %w", err)
	}
	if !found {
		seed = domain.NewLedger(cfg.Trading.InitialCapital, time.Now())
	}

	mem := storage.NewMemoryStore(seed)
	pe := paper.New(demo.NewProvider(nil), mem, mem, notifier, paperConfig(cfg))
	res, err := pe.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("runDemo: %w", err)
	}

	for _, d := range res.Decisions {
		slog.Info("demo decision",
			"market", d.MarketTitle,
			"edge", d.EdgeType.String(),
			"side", d.Side,
			"executed", d.Executed,
			"rationale", d.Rationale,
		)
	}
	return nil
}

func runReport(ctx context.Context, st *stores, notifier *notify.Console) error {
	rep, err := report.Generate(ctx, st.ledger, st.decisions)
	if errors.Is(err, report.ErrNoLedger) {
		slog.Warn("no ledger yet, run a cycle first")
		return nil
	}
	if err != nil {
		return err
	}
	notifier.PrintReport(rep.Stats, rep.OpenPositions, rep.SkippedLines)
	return nil
}

func pushMetrics(ctx context.Context, cfg config.MetricsConfig) {
	if cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(ctx, cfg.PushgatewayURL, cfg.Job); err != nil {
		slog.Warn("metrics push failed", "err", err)
	}
}

// paperConfig traduce la configuración de fichero a la del engine.
func paperConfig(cfg *config.Config) paper.Config {
	t := cfg.Trading
	mr := cfg.Detectors.MeanReversion
	ra := cfg.Detectors.ResolutionArb

	return paper.Config{
		Sizing: domain.SizingConfig{
			KellyFraction:   t.KellyFraction,
			MaxPositionSize: t.MaxPositionSize,
			MinStake:        t.MinStake,
		},
		Exit: domain.ExitRule{TakeProfit: t.TakeProfit, StopLoss: t.StopLoss},
		Strategy: strategy.Config{
			MeanReversion: strategy.MeanReversionConfig{
				MinHistory:       mr.MinHistory,
				MinRecent:        mr.MinRecent,
				Window:           time.Duration(mr.WindowHours * float64(time.Hour)),
				MinMove:          mr.MinMove,
				MinEdge:          mr.MinEdge,
				MaxConfidence:    mr.MaxConfidence,
				ConfidenceFactor: mr.ConfidenceFactor,
			},
			ResolutionArb: strategy.ResolutionArbConfig{
				MaxDaysToClose: ra.MaxDaysToClose,
				MinProb:        ra.MinProb,
				MaxProb:        ra.MaxProb,
				FairValue:      ra.FairValue,
				Confidence:     ra.Confidence,
			},
		},
		TopMarkets:        cfg.Scan.TopMarkets,
		MinEdge:           t.MinEdgeThreshold,
		MaxTradesPerCycle: t.MaxTradesPerCycle,
		MinConfidence:     t.MinConfidence,
		MinTradingCapital: t.MinTradingCapital,
		InitialCapital:    t.InitialCapital,
	}
}
