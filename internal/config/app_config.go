// Package config manages application configuration loading and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// VenueConfig configures the Lighter REST endpoint and signing sidecar.
type VenueConfig struct {
	Name         string        `yaml:"name"`
	BaseURL      string        `yaml:"baseURL"`
	AccountIndex int64         `yaml:"accountIndex"`
	APIKeyIndex  int           `yaml:"apiKeyIndex"`
	SignerURL    string        `yaml:"signerURL"`
	HTTPTimeout  time.Duration `yaml:"httpTimeout"`
	AuthTokenTTL time.Duration `yaml:"authTokenTTL"`
}

// MarketConfig identifies the traded market and its fixed-point encoding.
type MarketConfig struct {
	Index         int   `yaml:"index"`
	PriceDecimals int32 `yaml:"priceDecimals"`
	SizeDecimals  int32 `yaml:"sizeDecimals"`
}

// GridConfig configures the ladder variant. Amounts are decimal strings.
type GridConfig struct {
	Direction          string        `yaml:"direction"`
	Count              int           `yaml:"count"`
	Investment         string        `yaml:"investment"`
	Leverage           string        `yaml:"leverage"`
	ProfitFactor       string        `yaml:"profitFactor"`
	Refill             string        `yaml:"refill"`
	InitialPosition    *bool         `yaml:"initialPosition"`
	AdoptExisting      *bool         `yaml:"adoptExisting"`
	SubmitSpacing      time.Duration `yaml:"submitSpacing"`
	CheckInterval      time.Duration `yaml:"checkInterval"`
	FirstClientOrderID int64         `yaml:"firstClientOrderID"`
}

// PairConfig configures the pair variant. Amounts are decimal strings.
type PairConfig struct {
	SpreadPercent      string        `yaml:"spreadPercent"`
	OrderSize          string        `yaml:"orderSize"`
	Leverage           string        `yaml:"leverage"`
	SubmitSpacing      time.Duration `yaml:"submitSpacing"`
	CheckInterval      time.Duration `yaml:"checkInterval"`
	FirstClientOrderID int64         `yaml:"firstClientOrderID"`
}

// LoggingConfig controls the zap logger and optional rotating file sink.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// StatusConfig configures the HTTP status and control surface.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// JournalConfig controls the optional PostgreSQL audit journal.
type JournalConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DSN           string `yaml:"dsn"`
	MaxConns      int32  `yaml:"maxConns"`
	BufferSize    int    `yaml:"bufferSize"`
	RunMigrations bool   `yaml:"runMigrations"`
}

// PaperConfig configures the in-memory venue used with -paper.
type PaperConfig struct {
	Bid           string        `yaml:"bid"`
	Ask           string        `yaml:"ask"`
	DriftInterval time.Duration `yaml:"driftInterval"`
	VolatilityBps float64       `yaml:"volatilityBps"`
	Seed          uint64        `yaml:"seed"`
}

// AppConfig is the unified application configuration sourced from YAML, an
// optional .env file and the process environment.
type AppConfig struct {
	Environment Environment     `yaml:"environment"`
	Mode        string          `yaml:"mode"`
	Venue       VenueConfig     `yaml:"venue"`
	Market      MarketConfig    `yaml:"market"`
	Grid        GridConfig      `yaml:"grid"`
	Pair        PairConfig      `yaml:"pair"`
	Logging     LoggingConfig   `yaml:"logging"`
	Status      StatusConfig    `yaml:"status"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Journal     JournalConfig   `yaml:"journal"`
	Paper       PaperConfig     `yaml:"paper"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Environment: EnvDev,
		Mode:        "grid",
		Venue: VenueConfig{
			Name:         "lighter",
			BaseURL:      "https://mainnet.zklighter.elliot.ai",
			SignerURL:    "http://127.0.0.1:8787",
			HTTPTimeout:  10 * time.Second,
			AuthTokenTTL: 10 * time.Minute,
		},
		Market: MarketConfig{Index: 1, PriceDecimals: 1, SizeDecimals: 8},
		Grid: GridConfig{
			Direction:          "LONG",
			Count:              20,
			Investment:         "100",
			Leverage:           "10",
			ProfitFactor:       "0.001",
			Refill:             "same",
			SubmitSpacing:      800 * time.Millisecond,
			CheckInterval:      2 * time.Second,
			FirstClientOrderID: 30000,
		},
		Pair: PairConfig{
			SpreadPercent:      "0.05",
			OrderSize:          "20",
			Leverage:           "5",
			SubmitSpacing:      300 * time.Millisecond,
			CheckInterval:      time.Second,
			FirstClientOrderID: 40000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Encoding:   "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Status: StatusConfig{Enabled: true, Addr: ":8880"},
		Telemetry: TelemetryConfig{
			ServiceName: "ladder",
		},
		Journal: JournalConfig{
			MaxConns:      4,
			BufferSize:    1024,
			RunMigrations: true,
		},
		Paper: PaperConfig{
			Bid:           "99.9",
			Ask:           "100.1",
			DriftInterval: 500 * time.Millisecond,
			VolatilityBps: 5,
		},
	}
}

// Load reads configPath over the defaults, applies the optional envFile and
// process environment overrides, then normalises and validates the result.
func Load(ctx context.Context, configPath, envFile string) (AppConfig, error) {
	_ = ctx

	cfg := Default()
	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()

	bytes, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return finish(cfg, envFile)
}

// LoadOrDefault behaves like Load but falls back to Default when configPath
// is empty or does not exist.
func LoadOrDefault(ctx context.Context, configPath, envFile string) (AppConfig, error) {
	if strings.TrimSpace(configPath) != "" {
		cfg, err := Load(ctx, configPath, envFile)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}
	return finish(Default(), envFile)
}

func finish(cfg AppConfig, envFile string) (AppConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return AppConfig{}, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadEnvFile populates the process environment from path without
// overriding variables that are already set. A missing default file is
// ignored; a missing explicit file is an error.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Venue.Name = strings.ToLower(strings.TrimSpace(c.Venue.Name))
	c.Venue.BaseURL = strings.TrimRight(strings.TrimSpace(c.Venue.BaseURL), "/")
	c.Venue.SignerURL = strings.TrimRight(strings.TrimSpace(c.Venue.SignerURL), "/")
	c.Grid.Direction = strings.ToUpper(strings.TrimSpace(c.Grid.Direction))
	c.Grid.Refill = strings.ToLower(strings.TrimSpace(c.Grid.Refill))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Encoding = strings.ToLower(strings.TrimSpace(c.Logging.Encoding))
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	c.Status.Addr = strings.TrimSpace(c.Status.Addr)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	c.Journal.DSN = strings.TrimSpace(c.Journal.DSN)

	if c.Journal.MaxConns <= 0 {
		c.Journal.MaxConns = 4
	}
	if c.Journal.BufferSize <= 0 {
		c.Journal.BufferSize = 1024
	}
}

// Validate performs semantic validation on the configuration. Strategy
// parameters are validated again, with parsed values, when the engine
// configuration is derived.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	switch c.Mode {
	case "grid", "pair":
	default:
		return fmt.Errorf("mode must be grid or pair")
	}
	if c.Venue.Name == "" {
		return fmt.Errorf("venue name required")
	}
	if c.Venue.BaseURL == "" {
		return fmt.Errorf("venue baseURL required")
	}
	if c.Venue.AccountIndex < 0 || c.Venue.APIKeyIndex < 0 {
		return fmt.Errorf("venue account and api key indexes must be >= 0")
	}
	if c.Market.Index < 0 {
		return fmt.Errorf("market index must be >= 0")
	}
	if c.Grid.CheckInterval <= 0 || c.Pair.CheckInterval <= 0 {
		return fmt.Errorf("checkInterval must be > 0")
	}
	if c.Grid.SubmitSpacing < 0 || c.Pair.SubmitSpacing < 0 {
		return fmt.Errorf("submitSpacing must be >= 0")
	}
	if c.Grid.FirstClientOrderID < 0 || c.Pair.FirstClientOrderID < 0 {
		return fmt.Errorf("firstClientOrderID must be >= 0")
	}
	if c.Status.Enabled && c.Status.Addr == "" {
		return fmt.Errorf("status addr required when enabled")
	}
	if c.Telemetry.EnableMetrics && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry serviceName required")
	}
	if c.Journal.Enabled && c.Journal.DSN == "" {
		return fmt.Errorf("journal dsn required when enabled")
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := strings.TrimSpace(path)
	candidate = filepath.Clean(candidate)

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open app config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
