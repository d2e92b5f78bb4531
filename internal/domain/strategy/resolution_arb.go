package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// ResolutionArbConfig controla el detector de resolution arbitrage.
type ResolutionArbConfig struct {
	MaxDaysToClose float64 // solo mercados que cierran en <= N días
	MinProb        float64 // banda de incertidumbre [MinProb, MaxProb]
	MaxProb        float64
	FairValue      float64
	Confidence     float64
}

// DefaultResolutionArbConfig: cierre en <= 7 días, probabilidad en [0.40, 0.60],
// fair value 0.5 y confianza fija 0.5.
func DefaultResolutionArbConfig() ResolutionArbConfig {
	return ResolutionArbConfig{
		MaxDaysToClose: 7,
		MinProb:        0.40,
		MaxProb:        0.60,
		FairValue:      0.5,
		Confidence:     0.5,
	}
}

// ResolutionArb modela "resolución inminente + alta incertidumbre = mispricing
// latente". No es un modelo de probabilidad calibrado: fuera de la banda
// asume que el mercado está bien valorado y no emite nada.
type ResolutionArb struct {
	cfg ResolutionArbConfig
}

// NewResolutionArb crea el detector.
func NewResolutionArb(cfg ResolutionArbConfig) *ResolutionArb {
	return &ResolutionArb{cfg: cfg}
}

func (d *ResolutionArb) Edge() domain.EdgeType { return domain.EdgeResolutionArb }

func (d *ResolutionArb) NeedsHistory() bool { return false }

// Detect implementa Detector. Solo usa el snapshot.
func (d *ResolutionArb) Detect(now time.Time, in Input) (domain.TradeSignal, bool) {
	m := in.Market
	days := m.DaysToClose(now)
	if days < 0 || days > d.cfg.MaxDaysToClose {
		return domain.TradeSignal{}, false
	}

	p := m.Probability
	if p < d.cfg.MinProb || p > d.cfg.MaxProb {
		return domain.TradeSignal{}, false
	}

	side := domain.SideNo
	if p < d.cfg.FairValue {
		side = domain.SideYes
	}

	return domain.TradeSignal{
		MarketID:    m.ID,
		MarketTitle: m.Title,
		CurrentProb: p,
		EdgeType:    domain.EdgeResolutionArb,
		FairValue:   d.cfg.FairValue,
		EdgePercent: math.Abs(d.cfg.FairValue-p) * 100,
		Side:        side,
		Confidence:  d.cfg.Confidence,
		Rationale: fmt.Sprintf("Resolves in %.1f days. Near 50-50 suggests unresolved outcome. High uncertainty = potential edge.",
			days),
		DetectedAt: now,
	}, true
}
