package manifold

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

const (
	marketsPath = "/markets"
	betsPath    = "/bets"
)

// FetchMarkets implementa ports.MarketProvider.
// Pide los mercados con actividad reciente y devuelve los binarios abiertos
// con volumen suficiente, ordenados por volumen 24h desc.
func (c *Client) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.cfg.ListingLimit))
	q.Set("sort", "last-bet-time")
	q.Set("order", "desc")
	u := c.cfg.BaseURL + marketsPath + "?" + q.Encode()

	var raw []liteMarket
	if err := c.get(ctx, c.listingLimiter, u, &raw); err != nil {
		return nil, fmt.Errorf("manifold.FetchMarkets: %w", err)
	}

	markets := mapMarkets(raw, c.cfg.MinVolume24h, c.now())
	slog.Debug("manifold markets fetched",
		"raw", len(raw),
		"binary_open", len(markets),
	)
	return markets, nil
}

// FetchHistory implementa ports.MarketProvider.
// Usa las apuestas del mercado (probAfter) como serie de probabilidad.
func (c *Client) FetchHistory(ctx context.Context, marketID string) ([]domain.HistoryPoint, error) {
	q := url.Values{}
	q.Set("contractId", marketID)
	q.Set("limit", strconv.Itoa(c.cfg.HistoryLimit))
	u := c.cfg.BaseURL + betsPath + "?" + q.Encode()

	var raw []historySample
	if err := c.get(ctx, c.historyLimiter, u, &raw); err != nil {
		return nil, fmt.Errorf("manifold.FetchHistory %s: %w", marketID, err)
	}
	return mapHistory(raw), nil
}
