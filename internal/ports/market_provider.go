package ports

import (
	"context"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// MarketProvider obtiene snapshots de mercados y su historial de probabilidad.
type MarketProvider interface {
	// FetchMarkets devuelve los mercados binarios abiertos, ordenados por
	// volumen 24h descendente.
	FetchMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchHistory devuelve el historial de probabilidad de un mercado en
	// orden cronológico. Puede devolver una lista vacía.
	FetchHistory(ctx context.Context, marketID string) ([]domain.HistoryPoint, error)
}
