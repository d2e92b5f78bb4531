package manifold

import "encoding/json"

// DTOs raw de la API de Manifold. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// liteMarket es un item de GET /markets. Los timestamps van en epoch ms.
type liteMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	OutcomeType   string      `json:"outcomeType"`
	Probability   *float64    `json:"probability"`
	Volume24Hours json.Number `json:"volume24Hours"`
	Volume24h     json.Number `json:"volume24h"` // nombre antiguo del campo
	IsResolved    bool        `json:"isResolved"`
	Resolution    string      `json:"resolution"`
	CreatedTime   int64       `json:"createdTime"`
	CloseTime     *int64      `json:"closeTime"`
}

// historySample es un item del historial de un mercado.
// Las apuestas traen probAfter; algunos endpoints devuelven prob.
type historySample struct {
	CreatedTime int64    `json:"createdTime"`
	Prob        *float64 `json:"prob"`
	ProbAfter   *float64 `json:"probAfter"`
}
