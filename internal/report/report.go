// Package report writes the implied-volatility table to disk for plotting and
// archiving.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/iv-surface/internal/surface"
)

// File names written into the output directory.
const (
	JSONFile = "surface.json"
	CSVFile  = "surface.csv"
)

// WriteJSON dumps the whole table, stats and market context included.
func WriteJSON(table *surface.Table, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, JSONFile), b, 0644)
}

// WriteCSV writes one surface point per solved row: time to expiry, the axis
// coordinate and implied volatility in percent.
func WriteCSV(table *surface.Table, axis surface.Axis, outdir string) (err error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outdir, CSVFile))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	headers := []string{"contract", "kind", "time_to_expiry", axis.String(), "implied_vol_pct"}
	if err := w.Write(headers); err != nil {
		return err
	}

	yPlaces := int32(2)
	if axis == surface.AxisMoneyness {
		yPlaces = 4
	}

	x, y, z := table.Axes(axis)
	for i, r := range table.Rows {
		row := []string{
			r.ContractSymbol,
			r.Kind.String(),
			fixed(x[i], 4),
			fixed(y[i], yPlaces),
			fixed(z[i], 2),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", r.ContractSymbol, err)
		}
	}

	w.Flush()
	return w.Error()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
