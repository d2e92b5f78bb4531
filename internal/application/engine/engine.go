package engine

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// CycleFunc ejecuta un ciclo completo. Un error se loguea y el loop sigue.
type CycleFunc func(ctx context.Context) error

// LoopConfig controla el loop de ciclos.
type LoopConfig struct {
	Interval time.Duration
	// StopFile: si existe al inicio de un tick, el loop lo borra y termina.
	// Vacío = deshabilitado.
	StopFile string
}

// RunLoop ejecuta cycle inmediatamente y luego en cada tick hasta que el
// contexto se cancela o aparece el STOP file. Los ciclos nunca se solapan:
// si un ciclo tarda más que el intervalo, el tick pendiente se descarta.
func RunLoop(ctx context.Context, cfg LoopConfig, cycle CycleFunc) error {
	if cfg.Interval <= 0 {
		return errors.New("engine.RunLoop: interval must be positive")
	}

	runCycle := func() {
		if err := cycle(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
		}
	}

	if stopRequested(cfg.StopFile) {
		return nil
	}
	runCycle()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("loop stopped (signal)")
			return nil
		case <-ticker.C:
			if stopRequested(cfg.StopFile) {
				return nil
			}
			runCycle()
		}
	}
}

// stopRequested comprueba y consume el STOP file.
func stopRequested(path string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not stat stop file", "path", path, "err", err)
		}
		return false
	}
	slog.Info("STOP file detected, shutting down", "path", path)
	if err := os.Remove(path); err != nil {
		slog.Warn("could not remove stop file", "path", path, "err", err)
	}
	return true
}
