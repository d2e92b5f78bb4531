package domain

// SizingConfig controla el sizing fractional-Kelly de las posiciones.
type SizingConfig struct {
	KellyFraction   float64 // multiplicador sobre Kelly completo (0.25 = quarter-Kelly)
	MaxPositionSize float64 // tope por posición
	MinStake        float64 // suelo: edges mínimos siguen generando trades registrables
}

// DefaultSizingConfig devuelve los valores de referencia: quarter-Kelly,
// máximo 1000 y mínimo 10 unidades por posición.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		KellyFraction:   0.25,
		MaxPositionSize: 1000,
		MinStake:        10,
	}
}

// KellyStake calcula el stake para un edge (fracción de probabilidad) y el
// capital disponible.
//
// Fórmula:
//
//	kelly = 2 × edge          (payoff binario simétrico: Kelly completo = 2× desviación)
//	stake = capital × kelly × KellyFraction
//	stake = max(min(stake, MaxPositionSize), MinStake)
//
// El resultado siempre está en [MinStake, MaxPositionSize] siempre que
// MinStake <= MaxPositionSize. No comprueba si el capital alcanza; eso es
// responsabilidad del ledger.
func KellyStake(edge, capital float64, cfg SizingConfig) float64 {
	kellyPercent := 2 * edge
	stake := capital * kellyPercent * cfg.KellyFraction
	if stake > cfg.MaxPositionSize {
		stake = cfg.MaxPositionSize
	}
	if stake < cfg.MinStake {
		stake = cfg.MinStake
	}
	return stake
}
