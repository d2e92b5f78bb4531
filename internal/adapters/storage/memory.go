package storage

import (
	"context"
	"sync"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// MemoryStore guarda ledger y decisiones en memoria. Lo usa el modo demo
// (sobre una copia del ledger real) y los tests.
type MemoryStore struct {
	mu        sync.Mutex
	ledger    *domain.Ledger
	decisions []domain.Decision
	saves     int
}

// NewMemoryStore crea un store vacío, o sembrado con una copia de seed.
func NewMemoryStore(seed *domain.Ledger) *MemoryStore {
	s := &MemoryStore{}
	if seed != nil {
		s.ledger = seed.Clone()
	}
	return s
}

// LoadLedger devuelve una copia: el caller puede mutarla sin tocar el store.
func (s *MemoryStore) LoadLedger(_ context.Context) (*domain.Ledger, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil, false, nil
	}
	return s.ledger.Clone(), true, nil
}

func (s *MemoryStore) SaveLedger(_ context.Context, l *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l.Clone()
	s.saves++
	return nil
}

func (s *MemoryStore) AppendDecision(_ context.Context, d domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *MemoryStore) ReadDecisions(_ context.Context) ([]domain.Decision, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Decision, len(s.decisions))
	copy(out, s.decisions)
	return out, 0, nil
}

// Saves devuelve cuántas veces se llamó a SaveLedger.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
