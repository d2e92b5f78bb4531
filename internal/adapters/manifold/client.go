package manifold

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.manifold.markets/v0"

	// Listing: una llamada por ciclo, límite holgado.
	listingRatePerSec = 2
	// Historial: 5 req/s = una cada 200ms, el espaciado fijo por mercado.
	defaultHistoryRatePerSec = 5

	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	baseRetryWait     = 500 * time.Millisecond
)

// Config configura el cliente de Manifold.
type Config struct {
	BaseURL           string
	Timeout           time.Duration // timeout por llamada
	HistoryRatePerSec float64
	MaxRetries        int
	MinVolume24h      float64 // mercados con menos volumen se descartan
	ListingLimit      int
	HistoryLimit      int
}

// DefaultConfig devuelve la configuración de producción.
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		Timeout:           defaultTimeout,
		HistoryRatePerSec: defaultHistoryRatePerSec,
		MaxRetries:        defaultMaxRetries,
		MinVolume24h:      100,
		ListingLimit:      1000,
		HistoryLimit:      1000,
	}
}

// Client es el HTTP client de Manifold con rate limiting y retries.
type Client struct {
	http           *http.Client
	cfg            Config
	listingLimiter *rate.Limiter
	historyLimiter *rate.Limiter
	now            func() time.Time
}

// NewClient crea un Client. Los campos vacíos de cfg toman el valor por defecto.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HistoryRatePerSec <= 0 {
		cfg.HistoryRatePerSec = def.HistoryRatePerSec
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ListingLimit <= 0 {
		cfg.ListingLimit = def.ListingLimit
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	return &Client{
		http:           &http.Client{Timeout: cfg.Timeout},
		cfg:            cfg,
		listingLimiter: rate.NewLimiter(listingRatePerSec, 1),
		historyLimiter: rate.NewLimiter(rate.Limit(cfg.HistoryRatePerSec), 1),
		now:            time.Now,
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	maxRetries := c.cfg.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			if attempt == maxRetries {
				return fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
