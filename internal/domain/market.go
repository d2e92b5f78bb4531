package domain

import (
	"time"
	"unicode/utf8"
)

// Market es el snapshot de un mercado binario tal como lo devuelve la API en
// un ciclo. Se construye en cada fetch y nunca se modifica.
type Market struct {
	ID          string
	Title       string
	OutcomeType string
	Probability float64 // probabilidad del YES, en [0,1]
	Volume24h   float64
	CreatedAt   time.Time
	ClosesAt    time.Time // puede estar en el pasado (pendiente de resolución)
	Resolved    bool
	Resolution  string // solo si Resolved
}

// DaysToClose devuelve los días (fraccionales) hasta el cierre, relativos a now.
// Es negativo si el mercado ya cerró.
func (m Market) DaysToClose(now time.Time) float64 {
	return m.ClosesAt.Sub(now).Hours() / 24
}

// HistoryPoint es una muestra (timestamp, probabilidad) del historial de un mercado.
type HistoryPoint struct {
	Timestamp   time.Time
	Probability float64
}

// IndexByID indexa los mercados por ID. Si hay IDs repetidos gana el último.
func IndexByID(markets []Market) map[string]Market {
	idx := make(map[string]Market, len(markets))
	for _, m := range markets {
		idx[m.ID] = m
	}
	return idx
}

// TruncateTitle devuelve el título truncado a maxLen runas, cortando siempre
// en un límite de runa. Si el título está vacío usa el ID del mercado.
func TruncateTitle(title, marketID string, maxLen int) string {
	t := title
	if t == "" {
		t = marketID
	}
	if utf8.RuneCountInString(t) <= maxLen {
		return t
	}
	if maxLen <= 3 {
		return string([]rune(t)[:max(maxLen, 0)])
	}
	return string([]rune(t)[:maxLen-3]) + "..."
}
