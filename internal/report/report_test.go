package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
	"github.com/contactkeval/iv-surface/internal/testutil"
)

func sampleTable() *surface.Table {
	return &surface.Table{
		RunID:       "6f1c1a52-8d7e-4a43-9a55-0d7c2c3f9b11",
		Underlying:  "SPY",
		Market:      surface.MarketContext{Spot: 590, RiskFreeRate: 0.01, DividendYield: 0.001},
		EvaluatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Rows: []surface.Result{
			{ContractSymbol: "O:SPY250620C00580000", Kind: pricing.Call, Strike: 580, TimeToExpiry: 170.0 / 365, ImpliedVolatility: 0.1834567},
			{ContractSymbol: "O:SPY250620P00560000", Kind: pricing.Put, Strike: 560, TimeToExpiry: 170.0 / 365, ImpliedVolatility: 0.2012345},
		},
		Stats: surface.Stats{Total: 5, Filtered: 2, Solved: 2, NotBracketed: 1},
	}
}

func TestWriteCSV_Golden(t *testing.T) {
	for _, axis := range []surface.Axis{surface.AxisStrike, surface.AxisMoneyness} {
		t.Run(axis.String(), func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, WriteCSV(sampleTable(), axis, dir))

			b, err := os.ReadFile(filepath.Join(dir, CSVFile))
			require.NoError(t, err)
			testutil.CompareWithGolden(t, "surface_"+axis.String()+".csv", b)
		})
	}
}

func TestWriteCSV_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCSV(&surface.Table{Market: surface.MarketContext{Spot: 100}}, surface.AxisStrike, dir))

	b, err := os.ReadFile(filepath.Join(dir, CSVFile))
	require.NoError(t, err)
	assert.Equal(t, "contract,kind,time_to_expiry,strike,implied_vol_pct\n", string(b))
}

func TestWriteJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	table := sampleTable()
	require.NoError(t, WriteJSON(table, dir))

	b, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)

	var got surface.Table
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, table.RunID, got.RunID)
	assert.Equal(t, table.Stats, got.Stats)
	assert.Equal(t, table.Rows, got.Rows)
	assert.True(t, table.EvaluatedAt.Equal(got.EvaluatedAt))
	assert.Contains(t, string(b), `"kind": "P"`)
}

func TestWriteCSV_ReportsFileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, CSVFile), 0755))

	err := WriteCSV(sampleTable(), surface.AxisStrike, dir)
	require.Error(t, err)

	blocked := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, nil, 0644))
	require.Error(t, WriteCSV(sampleTable(), surface.AxisStrike, blocked))
	require.Error(t, WriteJSON(sampleTable(), blocked))
}
