// Package demo provides a fixed, offline market provider for the demo mode.
package demo

import (
	"context"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// Provider implementa ports.MarketProvider sin llamadas de red: devuelve dos
// mercados sintéticos relativos a now y ningún historial.
type Provider struct {
	now func() time.Time
}

// NewProvider crea el provider. now puede ser nil (time.Now).
func NewProvider(now func() time.Time) *Provider {
	if now == nil {
		now = time.Now
	}
	return &Provider{now: now}
}

// FetchMarkets devuelve los mercados sintéticos, ordenados por volumen desc.
//
//   - demo-2: cierra en 3 días a 0.42, dentro de la banda de resolution arb.
//   - demo-1: cierra en 126 días a 0.65, fuera de cualquier detector.
func (p *Provider) FetchMarkets(_ context.Context) ([]domain.Market, error) {
	now := p.now().UTC()
	return []domain.Market{
		{
			ID:          "demo-2",
			Title:       "Will the incumbent be re-elected in 2028?",
			OutcomeType: "BINARY",
			Probability: 0.42,
			Volume24h:   100000,
			CreatedAt:   now.Add(-100 * 24 * time.Hour),
			ClosesAt:    now.Add(3 * 24 * time.Hour),
		},
		{
			ID:          "demo-1",
			Title:       "Will a next-generation chat model be released by end of 2026?",
			OutcomeType: "BINARY",
			Probability: 0.65,
			Volume24h:   50000,
			CreatedAt:   now.Add(-30 * 24 * time.Hour),
			ClosesAt:    now.Add(126 * 24 * time.Hour),
		},
	}, nil
}

// FetchHistory no tiene datos: el demo solo ejercita detectores de snapshot.
func (p *Provider) FetchHistory(_ context.Context, _ string) ([]domain.HistoryPoint, error) {
	return nil, nil
}
