package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Trading   TradingConfig   `yaml:"trading"`
	Scan      ScanConfig      `yaml:"scan"`
	Detectors DetectorsConfig `yaml:"detectors"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TradingConfig controla sizing, ejecución y salidas.
type TradingConfig struct {
	KellyFraction        float64 `yaml:"kelly_fraction"`     // fracción de Kelly (0.25 = quarter Kelly)
	MinEdgeThreshold     float64 `yaml:"min_edge_threshold"` // señales con edge <= umbral se descartan
	MaxPositionSize      float64 `yaml:"max_position_size"`
	MinStake             float64 `yaml:"min_stake"`
	InitialCapital       float64 `yaml:"initial_capital"`
	MaxTradesPerCycle    int     `yaml:"max_trades_per_cycle"`
	MinConfidence        float64 `yaml:"min_confidence"`
	MinTradingCapital    float64 `yaml:"min_trading_capital"` // por debajo se deja de operar en el ciclo
	TakeProfit           float64 `yaml:"take_profit"`         // fracción del stake
	StopLoss             float64 `yaml:"stop_loss"`           // fracción del stake, positiva
	CheckIntervalSeconds int     `yaml:"check_interval_seconds"`
}

// ScanConfig controla qué mercados se evalúan.
type ScanConfig struct {
	TopMarkets        int     `yaml:"top_markets"`
	MinVolume24h      float64 `yaml:"min_volume_24h"`
	HistoryRatePerSec float64 `yaml:"history_rate_per_sec"`
}

// DetectorsConfig agrupa los umbrales de los detectores.
type DetectorsConfig struct {
	MeanReversion MeanReversionConfig `yaml:"mean_reversion"`
	ResolutionArb ResolutionArbConfig `yaml:"resolution_arb"`
}

// MeanReversionConfig son los umbrales del detector de mean-reversion.
type MeanReversionConfig struct {
	MinHistory       int     `yaml:"min_history"`
	MinRecent        int     `yaml:"min_recent"`
	WindowHours      float64 `yaml:"window_hours"`
	MinMove          float64 `yaml:"min_move"`
	MinEdge          float64 `yaml:"min_edge"`
	MaxConfidence    float64 `yaml:"max_confidence"`
	ConfidenceFactor float64 `yaml:"confidence_factor"`
}

// ResolutionArbConfig son los umbrales del detector de resolution arbitrage.
type ResolutionArbConfig struct {
	MaxDaysToClose float64 `yaml:"max_days_to_close"`
	MinProb        float64 `yaml:"min_prob"`
	MaxProb        float64 `yaml:"max_prob"`
	FairValue      float64 `yaml:"fair_value"`
	Confidence     float64 `yaml:"confidence"`
}

// APIConfig contiene la base URL de Manifold y el timeout por llamada.
type APIConfig struct {
	ManifoldBase   string `yaml:"manifold_base"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// StorageConfig controla dónde se persisten ledger y decisiones.
type StorageConfig struct {
	Driver        string `yaml:"driver"` // json | sqlite
	LedgerPath    string `yaml:"ledger_path"`
	DecisionsPath string `yaml:"decisions_path"`
	DSN           string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato, nivel y fichero de logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // vacío = solo stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// MetricsConfig controla el push de métricas al final de cada ciclo.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"` // vacío = sin push
	Job            string `yaml:"job"`
}

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Si el YAML no existe se usan los defaults. Las variables de entorno
// sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// sin archivo: defaults + env
	case err != nil:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CheckInterval devuelve el intervalo del modo loop como time.Duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Trading.CheckIntervalSeconds) * time.Second
}

// APITimeout devuelve el timeout por llamada HTTP.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Validate comprueba los rangos que el resto del código asume.
func (c *Config) Validate() error {
	t := c.Trading
	switch {
	case t.KellyFraction <= 0 || t.KellyFraction > 1:
		return fmt.Errorf("trading.kelly_fraction must be in (0, 1], got %v", t.KellyFraction)
	case t.MinStake > t.MaxPositionSize:
		return fmt.Errorf("trading.min_stake (%v) exceeds max_position_size (%v)", t.MinStake, t.MaxPositionSize)
	case t.MinConfidence < 0 || t.MinConfidence > 1:
		return fmt.Errorf("trading.min_confidence must be in [0, 1], got %v", t.MinConfidence)
	}

	r := c.Detectors.ResolutionArb
	if r.MinProb > r.MaxProb {
		return fmt.Errorf("detectors.resolution_arb: min_prob (%v) > max_prob (%v)", r.MinProb, r.MaxProb)
	}

	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverJSON, DriverSQLite, c.Storage.Driver)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("MANIFOLD_API"); v != "" {
		cfg.API.ManifoldBase = v
	}
	if v := os.Getenv("PREDICTBOT_LEDGER"); v != "" {
		cfg.Storage.LedgerPath = v
	}
	if v := os.Getenv("PREDICTBOT_DECISIONS"); v != "" {
		cfg.Storage.DecisionsPath = v
	}
	if v := os.Getenv("PREDICTBOT_STORAGE"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialCapital = f
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	t := &cfg.Trading
	if t.KellyFraction <= 0 {
		t.KellyFraction = 0.25 // quarter Kelly
	}
	if t.MinEdgeThreshold <= 0 {
		t.MinEdgeThreshold = 0.05
	}
	if t.MaxPositionSize <= 0 {
		t.MaxPositionSize = 1000
	}
	if t.MinStake <= 0 {
		t.MinStake = 10
	}
	if t.InitialCapital <= 0 {
		t.InitialCapital = 10000
	}
	if t.MaxTradesPerCycle <= 0 {
		t.MaxTradesPerCycle = 3
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = 0.5
	}
	if t.MinTradingCapital <= 0 {
		t.MinTradingCapital = 100
	}
	if t.TakeProfit <= 0 {
		t.TakeProfit = 0.02
	}
	if t.StopLoss <= 0 {
		t.StopLoss = 0.03
	}
	if t.CheckIntervalSeconds <= 0 {
		t.CheckIntervalSeconds = 300
	}

	s := &cfg.Scan
	if s.TopMarkets <= 0 {
		s.TopMarkets = 50
	}
	if s.MinVolume24h <= 0 {
		s.MinVolume24h = 100
	}
	if s.HistoryRatePerSec <= 0 {
		s.HistoryRatePerSec = 5 // una llamada cada 200ms
	}

	mr := &cfg.Detectors.MeanReversion
	if mr.MinHistory <= 0 {
		mr.MinHistory = 10
	}
	if mr.MinRecent <= 0 {
		mr.MinRecent = 5
	}
	if mr.WindowHours <= 0 {
		mr.WindowHours = 24
	}
	if mr.MinMove <= 0 {
		mr.MinMove = 0.10
	}
	if mr.MinEdge <= 0 {
		mr.MinEdge = 0.05
	}
	if mr.MaxConfidence <= 0 {
		mr.MaxConfidence = 0.8
	}
	if mr.ConfidenceFactor <= 0 {
		mr.ConfidenceFactor = 2
	}

	ra := &cfg.Detectors.ResolutionArb
	if ra.MaxDaysToClose <= 0 {
		ra.MaxDaysToClose = 7
	}
	if ra.MinProb <= 0 {
		ra.MinProb = 0.40
	}
	if ra.MaxProb <= 0 {
		ra.MaxProb = 0.60
	}
	if ra.FairValue <= 0 {
		ra.FairValue = 0.5
	}
	if ra.Confidence <= 0 {
		ra.Confidence = 0.5
	}

	if cfg.API.ManifoldBase == "" {
		cfg.API.ManifoldBase = "https://api.manifold.markets/v0"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 10
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = 3
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverJSON
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "paper_trades.json"
	}
	if cfg.Storage.DecisionsPath == "" {
		cfg.Storage.DecisionsPath = "decisions.jsonl"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predictbot.db"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 5
	}

	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "predictbot"
	}
}
