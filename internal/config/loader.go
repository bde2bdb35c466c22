package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies IVSURF_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Underlying, "IVSURF_UNDERLYING")
	setStr(&cfg.OutputDir, "IVSURF_OUTPUT_DIR")
	setStr(&cfg.LogLevel, "IVSURF_LOG_LEVEL")

	// ── Market ──
	setFloat64(&cfg.Market.RiskFreeRate, "IVSURF_MARKET_RISK_FREE_RATE")
	setFloat64(&cfg.Market.DividendYield, "IVSURF_MARKET_DIVIDEND_YIELD")

	// ── Filter ──
	setFloat64(&cfg.Filter.MinStrikePct, "IVSURF_FILTER_MIN_STRIKE_PCT")
	setFloat64(&cfg.Filter.MaxStrikePct, "IVSURF_FILTER_MAX_STRIKE_PCT")
	setFloat64(&cfg.Filter.MinHorizon, "IVSURF_FILTER_MIN_HORIZON")
	setStringSlice(&cfg.Filter.Kinds, "IVSURF_FILTER_KINDS")
	setStr(&cfg.Filter.Where, "IVSURF_FILTER_WHERE")

	// ── Solver ──
	setFloat64(&cfg.Solver.LowerBound, "IVSURF_SOLVER_LOWER_BOUND")
	setFloat64(&cfg.Solver.UpperBound, "IVSURF_SOLVER_UPPER_BOUND")
	setFloat64(&cfg.Solver.Tolerance, "IVSURF_SOLVER_TOLERANCE")
	setInt(&cfg.Solver.MaxIter, "IVSURF_SOLVER_MAX_ITER")

	// ── Batch ──
	setInt(&cfg.Batch.Workers, "IVSURF_BATCH_WORKERS")

	// ── Provider ──
	setStr(&cfg.Provider.Name, "IVSURF_PROVIDER_NAME")
	setStr(&cfg.Provider.APIKey, "IVSURF_PROVIDER_API_KEY")
	setStr(&cfg.Provider.APIKey, "MASSIVE_API_KEY") // compatibility alias
	setStr(&cfg.Provider.BaseURL, "IVSURF_PROVIDER_BASE_URL")
	setStr(&cfg.Provider.DataDir, "IVSURF_PROVIDER_DATA_DIR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "IVSURF_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "IVSURF_SERVER_ADDR")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
