package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alejandrodnm/predictbot/config"
	"github.com/alejandrodnm/predictbot/internal/adapters/manifold"
	"github.com/alejandrodnm/predictbot/internal/adapters/notify"
)

const (
	modeOnce   = "once"
	modeDemo   = "demo"
	modeLoop   = "loop"
	modeReport = "report"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the signal table after each cycle (default: compact 1-line)")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address in loop mode (e.g. :9090)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: predictbot [flags] [once|demo|loop|report]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := modeOnce
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}
	switch mode {
	case modeOnce, modeDemo, modeLoop, modeReport:
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	closeLog := setupLogger(cfg.Log)
	defer closeLog()

	slog.Info("predictbot starting",
		"mode", mode,
		"config", *configPath,
		"storage", cfg.Storage.Driver,
		"interval", cfg.CheckInterval(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, mode, cfg, notify.NewConsole(*table), *metricsAddr)
	cancel()
	if err != nil {
		slog.Error("predictbot exited with error", "mode", mode, "err", err)
		// os.Exit no ejecuta los defers.
		closeLog()
		os.Exit(1)
	}

	slog.Info("predictbot stopped cleanly")
}

// run abre el storage, ejecuta el modo y cierra el storage antes de volver,
// también en el camino de error.
func run(ctx context.Context, mode string, cfg *config.Config, notifier *notify.Console, metricsAddr string) error {
	st, err := openStorageFn(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage (%s): %w", cfg.Storage.Driver, err)
	}
	defer st.close()

	switch mode {
	case modeReport:
		return runReport(ctx, st, notifier)
	case modeDemo:
		return runDemo(ctx, cfg, st, notifier)
	case modeLoop:
		return runLoop(ctx, cfg, newClient(cfg), st, notifier, metricsAddr)
	default:
		return runOnce(ctx, cfg, newClient(cfg), st, notifier)
	}
}

func newClient(cfg *config.Config) *manifold.Client {
	mc := manifold.DefaultConfig()
	mc.BaseURL = cfg.API.ManifoldBase
	mc.Timeout = cfg.APITimeout()
	mc.MaxRetries = cfg.API.MaxRetries
	mc.HistoryRatePerSec = cfg.Scan.HistoryRatePerSec
	mc.MinVolume24h = cfg.Scan.MinVolume24h
	return manifold.NewClient(mc)
}

// setupLogger configura slog. Si log.file está definido, además de stdout
// escribe a un fichero con rotación. Devuelve la función que cierra el fichero.
func setupLogger(cfg config.LogConfig) func() {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = io.MultiWriter(os.Stdout, lj)
		closeFn = func() { _ = lj.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn
}
