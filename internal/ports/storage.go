package ports

import (
	"context"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// LedgerStore persiste el ledger entre ejecuciones.
type LedgerStore interface {
	// LoadLedger devuelve el ledger guardado. found=false si nunca se guardó
	// ninguno; un ledger ilegible es un error, nunca un ledger vacío.
	LoadLedger(ctx context.Context) (ledger *domain.Ledger, found bool, err error)

	// SaveLedger reemplaza el ledger guardado por completo.
	SaveLedger(ctx context.Context, ledger *domain.Ledger) error
}

// DecisionLog es el registro append-only de decisiones.
type DecisionLog interface {
	// AppendDecision añade un registro al final del log.
	AppendDecision(ctx context.Context, d domain.Decision) error

	// ReadDecisions devuelve todos los registros en orden de escritura.
	// Los registros ilegibles se saltan y se cuentan en skipped.
	ReadDecisions(ctx context.Context) (decisions []domain.Decision, skipped int, err error)
}
