package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
)

const sampleTOML = `
underlying = "QQQ"
output_dir = "reports"
log_level  = "debug"

[market]
risk_free_rate = 0.045
dividend_yield = 0.006

[filter]
min_strike_pct = 80
max_strike_pct = 120
min_horizon    = 0.1
kinds          = ["C", "put"]

[solver]
upper_bound = 3
tolerance   = 1e-8

[provider]
name     = "csv"
data_dir = "testdata"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ivsurface.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.01, cfg.Market.RiskFreeRate)
	assert.Equal(t, 0.001, cfg.Market.DividendYield)
	assert.Equal(t, 70.0, cfg.Filter.MinStrikePct)
	assert.Equal(t, 130.0, cfg.Filter.MaxStrikePct)
	assert.Equal(t, 0.07, cfg.Filter.MinHorizon)
	assert.Equal(t, -2.0, cfg.Solver.LowerBound)
	assert.Equal(t, 2.0, cfg.Solver.UpperBound)
	assert.Equal(t, ProviderSynthetic, cfg.ProviderName())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "QQQ", cfg.Underlying)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.045, cfg.Market.RiskFreeRate)
	assert.Equal(t, []string{"C", "put"}, cfg.Filter.Kinds)

	// untouched solver fields keep their defaults
	assert.Equal(t, -2.0, cfg.Solver.LowerBound)
	assert.Equal(t, 3.0, cfg.Solver.UpperBound)
	assert.Equal(t, 1e-8, cfg.Solver.Tolerance)
	assert.Equal(t, 100, cfg.Solver.MaxIter)

	assert.Equal(t, ProviderCSV, cfg.ProviderName())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IVSURF_UNDERLYING", "IWM")
	t.Setenv("IVSURF_MARKET_DIVIDEND_YIELD", "0.02")
	t.Setenv("IVSURF_FILTER_KINDS", "P, C ,")
	t.Setenv("IVSURF_BATCH_WORKERS", "3")
	t.Setenv("IVSURF_SERVER_ENABLED", "true")
	t.Setenv("IVSURF_SOLVER_MAX_ITER", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "IWM", cfg.Underlying)
	assert.Equal(t, 0.02, cfg.Market.DividendYield)
	assert.Equal(t, []string{"P", "C"}, cfg.Filter.Kinds)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 100, cfg.Solver.MaxIter)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "underlying = [1, 2"))
	require.Error(t, err)
}

func TestProviderName(t *testing.T) {
	tests := map[string]struct {
		provider ProviderConfig
		want     string
	}{
		"explicit":     {ProviderConfig{Name: " Massive ", APIKey: "k"}, ProviderMassive},
		"api key":      {ProviderConfig{APIKey: "k", DataDir: "d"}, ProviderMassive},
		"data dir":     {ProviderConfig{DataDir: "d"}, ProviderCSV},
		"nothing set":  {ProviderConfig{}, ProviderSynthetic},
		"unknown name": {ProviderConfig{Name: "bloomberg"}, "bloomberg"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Provider = tc.provider
			assert.Equal(t, tc.want, cfg.ProviderName())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"empty underlying":     func(c *Config) { c.Underlying = " " },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
		"negative dividend":    func(c *Config) { c.Market.DividendYield = -0.01 },
		"inverted strikes":     func(c *Config) { c.Filter.MinStrikePct, c.Filter.MaxStrikePct = 120, 80 },
		"negative horizon":     func(c *Config) { c.Filter.MinHorizon = -1 },
		"unknown kind":         func(c *Config) { c.Filter.Kinds = []string{"X"} },
		"bad where":            func(c *Config) { c.Filter.Where = "volume > 10" },
		"non-positive upper":   func(c *Config) { c.Solver.LowerBound, c.Solver.UpperBound = -1, 0 },
		"zero tolerance":       func(c *Config) { c.Solver.Tolerance = 0 },
		"negative workers":     func(c *Config) { c.Batch.Workers = -1 },
		"unknown provider":     func(c *Config) { c.Provider.Name = "bloomberg" },
		"massive without key":  func(c *Config) { c.Provider.Name = ProviderMassive },
		"csv without data dir": func(c *Config) { c.Provider.Name = ProviderCSV },
		"server without addr":  func(c *Config) { c.Server.Enabled, c.Server.Addr = true, "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestEvaluatorOptions(t *testing.T) {
	cfg := Defaults()
	cfg.Filter.Kinds = []string{"call", "P"}
	cfg.Batch.Workers = 4

	opts, err := cfg.EvaluatorOptions(200)
	require.NoError(t, err)

	assert.Equal(t, surface.StrikeRange{Min: 140, Max: 260}, opts.Strikes)
	assert.Equal(t, []pricing.Kind{pricing.Call, pricing.Put}, opts.Kinds)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, cfg.Solver, opts.Solver)
	assert.Equal(t, 0.07, opts.MinHorizon)

	mctx := cfg.MarketContext(200)
	assert.Equal(t, surface.MarketContext{Spot: 200, RiskFreeRate: 0.01, DividendYield: 0.001}, mctx)

	cfg.Filter.Where = "price > 0.05"
	opts, err = cfg.EvaluatorOptions(200)
	require.NoError(t, err)
	assert.Equal(t, "price > 0.05", opts.Where.String())

	cfg.Filter.Kinds = []string{"straddle"}
	_, err = cfg.EvaluatorOptions(200)
	require.ErrorIs(t, err, pricing.ErrUnknownKind)
}
