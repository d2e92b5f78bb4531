package storage

// records.go: formato persistido del ledger y del decision log.
//
// El ledger es un objeto JSON con timestamps en epoch segundos; el decision
// log es JSON Lines con timestamps ISO-8601. Los DTOs no salen de este paquete.

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// ErrCorruptLedger indica que el ledger persistido existe pero no se puede leer.
// Nunca se reinicializa en silencio: el caller decide.
var ErrCorruptLedger = errors.New("corrupt ledger")

type ledgerRecord struct {
	Capital         float64          `json:"capital"`
	Positions       []positionRecord `json:"positions"`
	ClosedPositions []positionRecord `json:"closed_positions"`
	TotalPnL        float64          `json:"total_pnl"`
	CreatedAt       float64          `json:"created_at"`
}

type positionRecord struct {
	MarketID    string   `json:"market_id"`
	MarketTitle string   `json:"market_title"`
	Side        string   `json:"side"`
	EntryProb   float64  `json:"entry_prob"`
	Size        float64  `json:"size"`
	EntryTime   float64  `json:"entry_time"`
	Status      string   `json:"status"`
	ExitProb    *float64 `json:"exit_prob"`
	ExitTime    *float64 `json:"exit_time"`
	PnL         *float64 `json:"pnl"`
}

type decisionRecord struct {
	Timestamp     string  `json:"timestamp"`
	RunID         string  `json:"run_id,omitempty"`
	MarketID      string  `json:"market_id"`
	MarketTitle   string  `json:"market_title"`
	EdgeType      string  `json:"edge_type"`
	EdgePercent   float64 `json:"edge_percent"`
	SuggestedSide string  `json:"suggested_side"`
	Confidence    float64 `json:"confidence"`
	Executed      bool    `json:"executed"`
	Rationale     string  `json:"rationale"`
	SkipReason    string  `json:"skip_reason,omitempty"`
}

func toLedgerRecord(l *domain.Ledger) ledgerRecord {
	rec := ledgerRecord{
		Capital:         l.Capital,
		Positions:       make([]positionRecord, 0, len(l.Positions)),
		ClosedPositions: make([]positionRecord, 0, len(l.ClosedPositions)),
		TotalPnL:        l.TotalPnL,
		CreatedAt:       toEpoch(l.CreatedAt),
	}
	for _, p := range l.Positions {
		rec.Positions = append(rec.Positions, toPositionRecord(p))
	}
	for _, p := range l.ClosedPositions {
		rec.ClosedPositions = append(rec.ClosedPositions, toPositionRecord(p))
	}
	return rec
}

func toPositionRecord(p domain.Position) positionRecord {
	rec := positionRecord{
		MarketID:    p.MarketID,
		MarketTitle: p.MarketTitle,
		Side:        string(p.Side),
		EntryProb:   p.EntryProb,
		Size:        p.Size,
		EntryTime:   toEpoch(p.EntryTime),
		Status:      string(p.Status),
		ExitProb:    p.ExitProb,
		PnL:         p.PnL,
	}
	if p.ExitTime != nil {
		t := toEpoch(*p.ExitTime)
		rec.ExitTime = &t
	}
	return rec
}

func fromLedgerRecord(rec ledgerRecord) (*domain.Ledger, error) {
	l := &domain.Ledger{
		Capital:         rec.Capital,
		Positions:       make([]domain.Position, 0, len(rec.Positions)),
		ClosedPositions: make([]domain.Position, 0, len(rec.ClosedPositions)),
		TotalPnL:        rec.TotalPnL,
		CreatedAt:       fromEpoch(rec.CreatedAt),
	}
	for i, r := range rec.Positions {
		p, err := fromPositionRecord(r, domain.PositionOpen)
		if err != nil {
			return nil, fmt.Errorf("positions[%d]: %w", i, err)
		}
		l.Positions = append(l.Positions, p)
	}
	for i, r := range rec.ClosedPositions {
		p, err := fromPositionRecord(r, domain.PositionClosed)
		if err != nil {
			return nil, fmt.Errorf("closed_positions[%d]: %w", i, err)
		}
		l.ClosedPositions = append(l.ClosedPositions, p)
	}
	return l, nil
}

// fromPositionRecord valida y convierte. El status lo define la lista en la
// que aparece la posición; un status explícito distinto es corrupción.
func fromPositionRecord(r positionRecord, status domain.PositionStatus) (domain.Position, error) {
	side := domain.Side(r.Side)
	if !side.Valid() {
		return domain.Position{}, fmt.Errorf("market %s: invalid side %q", r.MarketID, r.Side)
	}
	if r.Status != "" && domain.PositionStatus(r.Status) != status {
		return domain.Position{}, fmt.Errorf("market %s: status %q in %s list", r.MarketID, r.Status, status)
	}
	if status == domain.PositionClosed && r.PnL == nil {
		return domain.Position{}, fmt.Errorf("market %s: closed without pnl", r.MarketID)
	}

	p := domain.Position{
		MarketID:    r.MarketID,
		MarketTitle: r.MarketTitle,
		Side:        side,
		EntryProb:   r.EntryProb,
		Size:        r.Size,
		EntryTime:   fromEpoch(r.EntryTime),
		Status:      status,
		ExitProb:    r.ExitProb,
		PnL:         r.PnL,
	}
	if r.ExitTime != nil {
		t := fromEpoch(*r.ExitTime)
		p.ExitTime = &t
	}
	return p, nil
}

func toDecisionRecord(d domain.Decision) decisionRecord {
	return decisionRecord{
		Timestamp:     d.Timestamp.UTC().Format(time.RFC3339Nano),
		RunID:         d.RunID,
		MarketID:      d.MarketID,
		MarketTitle:   d.MarketTitle,
		EdgeType:      d.EdgeType.String(),
		EdgePercent:   d.EdgePercent,
		SuggestedSide: string(d.Side),
		Confidence:    d.Confidence,
		Executed:      d.Executed,
		Rationale:     d.Rationale,
		SkipReason:    d.SkipReason,
	}
}

func fromDecisionRecord(r decisionRecord) (domain.Decision, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return domain.Decision{}, err
	}
	edge, err := domain.ParseEdgeType(r.EdgeType)
	if err != nil {
		return domain.Decision{}, err
	}
	side := domain.Side(r.SuggestedSide)
	if !side.Valid() {
		return domain.Decision{}, fmt.Errorf("invalid side %q", r.SuggestedSide)
	}
	return domain.Decision{
		Timestamp:   ts,
		RunID:       r.RunID,
		MarketID:    r.MarketID,
		MarketTitle: r.MarketTitle,
		EdgeType:    edge,
		EdgePercent: r.EdgePercent,
		Side:        side,
		Confidence:  r.Confidence,
		Executed:    r.Executed,
		Rationale:   r.Rationale,
		SkipReason:  r.SkipReason,
	}, nil
}

// Formatos aceptados al leer: RFC 3339 y el ISO-8601 sin zona (se asume UTC).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func toEpoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func fromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}
