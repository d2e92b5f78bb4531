package manifold

import (
	"sort"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

const (
	binaryOutcomeType = "BINARY"
	// closeTime ausente → el mercado se trata como si cerrara en un año.
	defaultCloseHorizon = 365 * 24 * time.Hour
	defaultProbability  = 0.5
)

// mapMarkets convierte los DTOs a domain.Market, descarta los que no son
// binarios, los resueltos y los de poco volumen, y ordena por volumen desc.
func mapMarkets(raw []liteMarket, minVolume float64, now time.Time) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		if r.OutcomeType != binaryOutcomeType || r.IsResolved {
			continue
		}
		m := mapMarket(r, now)
		if m.Volume24h < minVolume {
			continue
		}
		markets = append(markets, m)
	}

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Volume24h > markets[j].Volume24h
	})
	return markets
}

// mapMarket convierte un liteMarket a domain.Market.
func mapMarket(r liteMarket, now time.Time) domain.Market {
	m := domain.Market{
		ID:          r.ID,
		Title:       r.Question,
		OutcomeType: r.OutcomeType,
		Probability: defaultProbability,
		Resolved:    r.IsResolved,
		CreatedAt:   fromMillis(r.CreatedTime),
		ClosesAt:    now.Add(defaultCloseHorizon).UTC(),
	}
	if m.Title == "" {
		m.Title = "Unknown"
	}
	if r.Probability != nil {
		m.Probability = *r.Probability
	}
	if r.CloseTime != nil {
		m.ClosesAt = fromMillis(*r.CloseTime)
	}
	if r.IsResolved {
		m.Resolution = r.Resolution
	}

	if v, err := r.Volume24Hours.Float64(); err == nil {
		m.Volume24h = v
	} else if v, err := r.Volume24h.Float64(); err == nil {
		m.Volume24h = v
	}
	if m.Volume24h < 0 {
		m.Volume24h = 0
	}
	return m
}

// mapHistory convierte las muestras a domain.HistoryPoint en orden cronológico.
// Las muestras sin probabilidad se descartan.
func mapHistory(raw []historySample) []domain.HistoryPoint {
	points := make([]domain.HistoryPoint, 0, len(raw))
	for _, r := range raw {
		var p float64
		switch {
		case r.Prob != nil:
			p = *r.Prob
		case r.ProbAfter != nil:
			p = *r.ProbAfter
		default:
			continue
		}
		points = append(points, domain.HistoryPoint{
			Timestamp:   fromMillis(r.CreatedTime),
			Probability: p,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
