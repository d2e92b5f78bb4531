package storage

// sqlite.go: driver alternativo al JSON para ledger y decision log.
//
// Estrategia:
//   - `ledger`: una sola fila (id = 1) con capital, total_pnl y created_at.
//   - `positions`: abiertas y cerradas; seq conserva el orden de entrada/cierre.
//     Cada save reescribe la tabla en una transacción: el ledger es pequeño
//     y así el estado en disco siempre es un snapshot completo.
//   - `decisions`: append-only, una fila por señal considerada.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    capital    REAL    NOT NULL,
    total_pnl  REAL    NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id    TEXT    NOT NULL,
    market_title TEXT,
    side         TEXT    NOT NULL,
    entry_prob   REAL    NOT NULL,
    size         REAL    NOT NULL,
    entry_time   INTEGER NOT NULL,
    status       TEXT    NOT NULL,
    exit_prob    REAL,
    exit_time    INTEGER,
    pnl          REAL
);

CREATE TABLE IF NOT EXISTS decisions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp      TEXT    NOT NULL,
    run_id         TEXT,
    market_id      TEXT    NOT NULL,
    market_title   TEXT,
    edge_type      TEXT    NOT NULL,
    edge_percent   REAL    NOT NULL DEFAULT 0,
    suggested_side TEXT    NOT NULL,
    confidence     REAL    NOT NULL DEFAULT 0,
    executed       INTEGER NOT NULL DEFAULT 0,
    rationale      TEXT,
    skip_reason    TEXT
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_decisions_run    ON decisions(run_id);
`

// SQLiteStorage implementa ports.LedgerStore y ports.DecisionLog usando
// SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close cierra la conexión.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadLedger implementa ports.LedgerStore. Sin fila en `ledger` → found=false.
func (s *SQLiteStorage) LoadLedger(ctx context.Context) (*domain.Ledger, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		capital, totalPnL float64
		createdAt         int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT capital, total_pnl, created_at FROM ledger WHERE id = 1`,
	).Scan(&capital, &totalPnL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: query ledger: %w", err)
	}

	l := &domain.Ledger{
		Capital:         capital,
		Positions:       []domain.Position{},
		ClosedPositions: []domain.Position{},
		TotalPnL:        totalPnL,
		CreatedAt:       time.Unix(createdAt, 0).UTC(),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, market_title, side, entry_prob, size, entry_time,
		       status, exit_prob, exit_time, pnl
		FROM positions ORDER BY seq`)
	if err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: query positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p             domain.Position
			title         sql.NullString
			side, status  string
			entryTime     int64
			exitProb, pnl sql.NullFloat64
			exitTime      sql.NullInt64
		)
		if err := rows.Scan(&p.MarketID, &title, &side, &p.EntryProb, &p.Size, &entryTime,
			&status, &exitProb, &exitTime, &pnl); err != nil {
			return nil, false, fmt.Errorf("storage.LoadLedger: scan position: %w", err)
		}
		p.MarketTitle = title.String
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.EntryTime = time.Unix(entryTime, 0).UTC()
		if exitProb.Valid {
			v := exitProb.Float64
			p.ExitProb = &v
		}
		if exitTime.Valid {
			t := time.Unix(exitTime.Int64, 0).UTC()
			p.ExitTime = &t
		}
		if pnl.Valid {
			v := pnl.Float64
			p.PnL = &v
		}

		if !p.Side.Valid() {
			return nil, false, fmt.Errorf("storage.LoadLedger: market %s: %w: invalid side %q", p.MarketID, ErrCorruptLedger, side)
		}
		switch p.Status {
		case domain.PositionOpen:
			l.Positions = append(l.Positions, p)
		case domain.PositionClosed:
			l.ClosedPositions = append(l.ClosedPositions, p)
		default:
			return nil, false, fmt.Errorf("storage.LoadLedger: market %s: %w: invalid status %q", p.MarketID, ErrCorruptLedger, status)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: rows: %w", err)
	}
	return l, true, nil
}

// SaveLedger implementa ports.LedgerStore. Reescribe el snapshot completo en una tx.
func (s *SQLiteStorage) SaveLedger(ctx context.Context, l *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveLedger: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger (id, capital, total_pnl, created_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			capital    = excluded.capital,
			total_pnl  = excluded.total_pnl,
			created_at = excluded.created_at`,
		l.Capital, l.TotalPnL, l.CreatedAt.Unix(),
	); err != nil {
		return fmt.Errorf("storage.SaveLedger: upsert ledger: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("storage.SaveLedger: clear positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions
			(market_id, market_title, side, entry_prob, size, entry_time,
			 status, exit_prob, exit_time, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveLedger: prepare: %w", err)
	}
	defer stmt.Close()

	// Abiertas primero y luego cerradas: seq reproduce ambos órdenes al cargar.
	all := make([]domain.Position, 0, len(l.Positions)+len(l.ClosedPositions))
	all = append(all, l.Positions...)
	all = append(all, l.ClosedPositions...)
	for _, p := range all {
		var exitTime *int64
		if p.ExitTime != nil {
			v := p.ExitTime.Unix()
			exitTime = &v
		}
		if _, err := stmt.ExecContext(ctx,
			p.MarketID, p.MarketTitle, string(p.Side), p.EntryProb, p.Size, p.EntryTime.Unix(),
			string(p.Status), p.ExitProb, exitTime, p.PnL,
		); err != nil {
			return fmt.Errorf("storage.SaveLedger: insert position %s: %w", p.MarketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveLedger: commit: %w", err)
	}
	return nil
}

// AppendDecision implementa ports.DecisionLog.
func (s *SQLiteStorage) AppendDecision(ctx context.Context, d domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := toDecisionRecord(d)
	executed := 0
	if rec.Executed {
		executed = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (timestamp, run_id, market_id, market_title, edge_type,
		                       edge_percent, suggested_side, confidence, executed,
		                       rationale, skip_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.RunID, rec.MarketID, rec.MarketTitle, rec.EdgeType,
		rec.EdgePercent, rec.SuggestedSide, rec.Confidence, executed,
		rec.Rationale, rec.SkipReason,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendDecision: %w", err)
	}
	return nil
}

// ReadDecisions implementa ports.DecisionLog. Filas con valores inválidos se saltan.
func (s *SQLiteStorage) ReadDecisions(ctx context.Context) ([]domain.Decision, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, run_id, market_id, market_title, edge_type, edge_percent,
		       suggested_side, confidence, executed, rationale, skip_reason
		FROM decisions ORDER BY id`)
	if err != nil {
		return nil, 0, fmt.Errorf("storage.ReadDecisions: query: %w", err)
	}
	defer rows.Close()

	var (
		out     []domain.Decision
		skipped int
	)
	for rows.Next() {
		var (
			rec                     decisionRecord
			runID, title, rat, skip sql.NullString
			executed                int
		)
		if err := rows.Scan(&rec.Timestamp, &runID, &rec.MarketID, &title, &rec.EdgeType,
			&rec.EdgePercent, &rec.SuggestedSide, &rec.Confidence, &executed, &rat, &skip); err != nil {
			return nil, 0, fmt.Errorf("storage.ReadDecisions: scan: %w", err)
		}
		rec.RunID = runID.String
		rec.MarketTitle = title.String
		rec.Rationale = rat.String
		rec.SkipReason = skip.String
		rec.Executed = executed != 0

		d, err := fromDecisionRecord(rec)
		if err != nil {
			skipped++
			slog.Debug("decision table: skipping invalid row", "market", rec.MarketID, "err", err)
			continue
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("storage.ReadDecisions: rows: %w", err)
	}
	return out, skipped, nil
}
