package strategy

import (
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// Input es el contexto de mercado que recibe un detector: el snapshot y,
// para los detectores que lo usan, su historial de probabilidad.
type Input struct {
	Market  domain.Market
	History []domain.HistoryPoint // orden cronológico, puede estar vacío
}

// Detector define el contrato común de los detectores de edge.
// Cada implementación es pura: dado el contexto devuelve como mucho una señal.
type Detector interface {
	// Edge devuelve el tipo de edge que produce el detector.
	Edge() domain.EdgeType

	// Detect evalúa el mercado en el instante now. ok=false significa
	// "sin señal", nunca un error.
	Detect(now time.Time, in Input) (sig domain.TradeSignal, ok bool)

	// NeedsHistory indica si Detect usa in.History (para evitar fetches inútiles).
	NeedsHistory() bool
}

// Config agrupa los umbrales de todos los detectores.
type Config struct {
	MeanReversion MeanReversionConfig
	ResolutionArb ResolutionArbConfig
}

// DefaultConfig devuelve los umbrales de referencia.
func DefaultConfig() Config {
	return Config{
		MeanReversion: DefaultMeanReversionConfig(),
		ResolutionArb: DefaultResolutionArbConfig(),
	}
}

// DefaultDetectors devuelve los detectores implementados, en el orden en que
// se ejecutan por mercado. CorrelationLag no se incluye.
func DefaultDetectors(cfg Config) []Detector {
	return []Detector{
		NewMeanReversion(cfg.MeanReversion),
		NewResolutionArb(cfg.ResolutionArb),
	}
}

// New construye el detector para un tipo de edge. Es exhaustivo sobre
// domain.EdgeType; devuelve false para valores desconocidos.
func New(edge domain.EdgeType, cfg Config) (Detector, bool) {
	switch edge {
	case domain.EdgeMeanReversion:
		return NewMeanReversion(cfg.MeanReversion), true
	case domain.EdgeResolutionArb:
		return NewResolutionArb(cfg.ResolutionArb), true
	case domain.EdgeCorrelationLag:
		return CorrelationLag{}, true
	}
	return nil, false
}
