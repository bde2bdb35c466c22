// Package config defines the run configuration of the surface tool and the
// conversions into solver and evaluator options.
package config

import (
	"fmt"
	"strings"

	"github.com/contactkeval/iv-surface/internal/iv"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// Provider names accepted in [provider].name.
const (
	ProviderMassive   = "massive"
	ProviderCSV       = "csv"
	ProviderSynthetic = "synthetic"
)

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by IVSURF_* environment variables.
type Config struct {
	Underlying string         `toml:"underlying"`
	OutputDir  string         `toml:"output_dir"`
	LogLevel   string         `toml:"log_level"`
	Market     MarketConfig   `toml:"market"`
	Filter     FilterConfig   `toml:"filter"`
	Solver     iv.Config      `toml:"solver"`
	Batch      BatchConfig    `toml:"batch"`
	Provider   ProviderConfig `toml:"provider"`
	Server     ServerConfig   `toml:"server"`
}

// MarketConfig holds the rates shared by every quote.
type MarketConfig struct {
	RiskFreeRate  float64 `toml:"risk_free_rate"`
	DividendYield float64 `toml:"dividend_yield"`
}

// FilterConfig selects which quotes of a chain are solved. Strike bounds are
// percentages of spot.
type FilterConfig struct {
	MinStrikePct float64  `toml:"min_strike_pct"`
	MaxStrikePct float64  `toml:"max_strike_pct"`
	MinHorizon   float64  `toml:"min_horizon"`
	Kinds        []string `toml:"kinds"`
	Where        string   `toml:"where"` // optional quote predicate, see surface.Where
}

// BatchConfig sizes the worker pool; zero uses GOMAXPROCS.
type BatchConfig struct {
	Workers int `toml:"workers"`
}

// ProviderConfig picks the market-data source. An empty Name is resolved by
// ProviderName.
type ProviderConfig struct {
	Name    string `toml:"name"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	DataDir string `toml:"data_dir"`
}

// ServerConfig enables the REST surface.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Defaults returns the configuration used when no file overrides a field.
func Defaults() Config {
	return Config{
		Underlying: "SPY",
		OutputDir:  "out",
		LogLevel:   "info",
		Market: MarketConfig{
			RiskFreeRate:  0.01,
			DividendYield: 0.001,
		},
		Filter: FilterConfig{
			MinStrikePct: 70,
			MaxStrikePct: 130,
			MinHorizon:   surface.DefaultMinHorizon,
			Kinds:        []string{"C"},
		},
		Solver: iv.DefaultConfig(),
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// ProviderName returns the configured provider, or infers one: massive when an
// API key is set, csv when a data directory is set, synthetic otherwise.
func (c *Config) ProviderName() string {
	if name := strings.ToLower(strings.TrimSpace(c.Provider.Name)); name != "" {
		return name
	}
	switch {
	case c.Provider.APIKey != "":
		return ProviderMassive
	case c.Provider.DataDir != "":
		return ProviderCSV
	default:
		return ProviderSynthetic
	}
}

// Kinds parses Filter.Kinds.
func (c *Config) Kinds() ([]pricing.Kind, error) {
	kinds := make([]pricing.Kind, 0, len(c.Filter.Kinds))
	for _, tag := range c.Filter.Kinds {
		k, err := pricing.ParseKind(tag)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// MarketContext binds the configured rates to spot.
func (c *Config) MarketContext(spot float64) surface.MarketContext {
	return surface.MarketContext{
		Spot:          spot,
		RiskFreeRate:  c.Market.RiskFreeRate,
		DividendYield: c.Market.DividendYield,
	}
}

// EvaluatorOptions builds batch options with the strike window centred on spot.
func (c *Config) EvaluatorOptions(spot float64) (surface.Options, error) {
	kinds, err := c.Kinds()
	if err != nil {
		return surface.Options{}, err
	}
	where, err := surface.ParseWhere(c.Filter.Where)
	if err != nil {
		return surface.Options{}, err
	}
	opts := surface.DefaultOptions()
	opts.Where = where
	opts.MinHorizon = c.Filter.MinHorizon
	opts.Strikes = surface.StrikeRangeFromSpot(spot, c.Filter.MinStrikePct, c.Filter.MaxStrikePct)
	opts.Kinds = kinds
	opts.Solver = c.Solver
	if c.Batch.Workers > 0 {
		opts.Workers = c.Batch.Workers
	}
	return opts, nil
}

// Validate checks the configuration for logical consistency and collects every
// problem into one error.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Underlying) == "" {
		errs = append(errs, "underlying must not be empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: error, warn, info, debug, trace)", c.LogLevel))
	}

	// Market
	if c.Market.DividendYield < 0 {
		errs = append(errs, "market: dividend_yield must be >= 0")
	}

	// Filter
	if c.Filter.MinStrikePct < 0 {
		errs = append(errs, "filter: min_strike_pct must be >= 0")
	}
	if c.Filter.MaxStrikePct != 0 && c.Filter.MaxStrikePct < c.Filter.MinStrikePct {
		errs = append(errs, "filter: max_strike_pct must not be below min_strike_pct")
	}
	if c.Filter.MinHorizon < 0 {
		errs = append(errs, "filter: min_horizon must be >= 0")
	}
	if _, err := c.Kinds(); err != nil {
		errs = append(errs, fmt.Sprintf("filter: %v", err))
	}
	if _, err := surface.ParseWhere(c.Filter.Where); err != nil {
		errs = append(errs, fmt.Sprintf("filter: %v", err))
	}

	// Solver
	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("solver: %v", err))
	}

	// Batch
	if c.Batch.Workers < 0 {
		errs = append(errs, "batch: workers must be >= 0")
	}

	// Provider
	switch c.ProviderName() {
	case ProviderMassive:
		if c.Provider.APIKey == "" {
			errs = append(errs, "provider: api_key is required for massive")
		}
	case ProviderCSV:
		if c.Provider.DataDir == "" {
			errs = append(errs, "provider: data_dir is required for csv")
		}
	case ProviderSynthetic:
	default:
		errs = append(errs, fmt.Sprintf("provider: unknown name %q (valid: massive, csv, synthetic)", c.Provider.Name))
	}

	// Server
	if c.Server.Enabled && c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
