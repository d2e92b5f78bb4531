package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// MeanReversionConfig controla el detector de mean-reversion.
type MeanReversionConfig struct {
	MinHistory       int           // mínimo de muestras totales
	MinRecent        int           // mínimo de muestras dentro de Window
	Window           time.Duration // ventana reciente (24h)
	MinMove          float64       // movimiento mínimo en la ventana; move >= MinMove dispara
	MinEdge          float64       // |current - fair| mínimo; edge >= MinEdge dispara
	MaxConfidence    float64       // tope de confianza
	ConfidenceFactor float64       // confianza = min(MaxConfidence, edge × factor)
}

// DefaultMeanReversionConfig: 10 muestras, 5 en 24h, move 0.10, edge 0.05,
// confianza min(0.8, 2·edge).
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		MinHistory:       10,
		MinRecent:        5,
		Window:           24 * time.Hour,
		MinMove:          0.10,
		MinEdge:          0.05,
		MaxConfidence:    0.8,
		ConfidenceFactor: 2,
	}
}

// MeanReversion detecta sobre-reacciones del mercado: si la probabilidad se
// movió mucho en 24h y quedó lejos de su media reciente, apuesta a que revierte.
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion crea el detector.
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg}
}

func (d *MeanReversion) Edge() domain.EdgeType { return domain.EdgeMeanReversion }

func (d *MeanReversion) NeedsHistory() bool { return true }

// Detect implementa Detector.
//
//	move  = |último − primero| dentro de la ventana
//	fair  = media ponderada por recencia (pesos 1..n)
//	edge  = |último − fair|
//	side  = NO si último > fair, si no YES
//
// El precio actual es la última muestra del historial, no el snapshot.
func (d *MeanReversion) Detect(now time.Time, in Input) (domain.TradeSignal, bool) {
	if len(in.History) < d.cfg.MinHistory {
		return domain.TradeSignal{}, false
	}

	probs := recentProbs(in.History, now, d.cfg.Window)
	if len(probs) < d.cfg.MinRecent {
		return domain.TradeSignal{}, false
	}

	first := probs[0]
	current := probs[len(probs)-1]
	move := math.Abs(current - first)
	if move < d.cfg.MinMove {
		return domain.TradeSignal{}, false
	}

	fair := RecencyWeightedMean(probs)
	edge := math.Abs(current - fair)
	if edge < d.cfg.MinEdge {
		return domain.TradeSignal{}, false
	}

	return domain.TradeSignal{
		MarketID:    in.Market.ID,
		MarketTitle: in.Market.Title,
		CurrentProb: current,
		EdgeType:    domain.EdgeMeanReversion,
		FairValue:   fair,
		EdgePercent: edge * 100,
		Side:        domain.SideFor(current, fair),
		Confidence:  math.Min(d.cfg.MaxConfidence, edge*d.cfg.ConfidenceFactor),
		Rationale: fmt.Sprintf("Market moved %.1f%% in %s. Fair value ≈ %.2f%%, current %.2f%%. Mean-reversion likely.",
			move*100, windowLabel(d.cfg.Window), fair*100, current*100),
		DetectedAt: now,
	}, true
}

// RecencyWeightedMean es una media lineal ponderada por recencia: la muestra
// más antigua pesa 1, la siguiente 2, ..., la más reciente n.
// Es un suavizado con sesgo a lo reciente, no un estimador estadístico.
func RecencyWeightedMean(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	var sum, weights float64
	for i, p := range probs {
		w := float64(i + 1)
		sum += p * w
		weights += w
	}
	return sum / weights
}

// recentProbs devuelve las probabilidades de las muestras con now − ts < window,
// en el orden del historial.
func recentProbs(history []domain.HistoryPoint, now time.Time, window time.Duration) []float64 {
	probs := make([]float64, 0, len(history))
	for _, h := range history {
		if now.Sub(h.Timestamp) < window {
			probs = append(probs, h.Probability)
		}
	}
	return probs
}

func windowLabel(w time.Duration) string {
	if w%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(w.Hours()))
	}
	return w.String()
}
