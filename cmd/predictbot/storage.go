package main

import (
	"fmt"

	"github.com/alejandrodnm/predictbot/config"
	"github.com/alejandrodnm/predictbot/internal/adapters/storage"
	"github.com/alejandrodnm/predictbot/internal/ports"
)

// stores agrupa el ledger y el decision log del driver elegido.
type stores struct {
	ledger    ports.LedgerStore
	decisions ports.DecisionLog
	close     func()
}

// openStorageFn es reemplazable en tests.
var openStorageFn = openStorage

func openStorage(cfg config.StorageConfig) (*stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := storage.NewSQLiteStorage(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("openStorage: %w", err)
		}
		return &stores{ledger: db, decisions: db, close: func() { _ = db.Close() }}, nil
	case config.DriverJSON:
		return &stores{
			ledger:    storage.NewJSONLedgerStore(cfg.LedgerPath),
			decisions: storage.NewJSONLDecisionLog(cfg.DecisionsPath),
			close:     func() {},
		}, nil
	}
	return nil, fmt.Errorf("openStorage: unknown driver %q", cfg.Driver)
}
