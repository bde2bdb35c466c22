package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// localCSVDataProvider serves bars and chains from CSV files in dir:
//
//	<UNDERLYING>_bars.csv   date,open,high,low,close,volume
//	<UNDERLYING>_chain.csv  contract_symbol,kind,strike,expiration,last_price
//
// Both files start with a header row. Dates use YYYY-MM-DD.
type localCSVDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalCSVDataProvider convenience constructor.
func NewLocalCSVDataProvider(dir string, secondary Provider) *localCSVDataProvider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (localCSVDataProv *localCSVDataProvider) Secondary() Provider {
	return localCSVDataProv.secondary
}

func (localCSVDataProv *localCSVDataProvider) path(underlying, suffix string) string {
	return filepath.Join(localCSVDataProv.dir, strings.ToUpper(underlying)+suffix)
}

// GetBars reads daily bars in [fromDate, toDate]. timespan and multiplier are
// ignored: local files only hold daily bars.
func (localCSVDataProv *localCSVDataProvider) GetBars(underlying string, fromDate, toDate time.Time, timespan int, multiplier string) ([]Bar, error) {
	rows, err := readCSV(localCSVDataProv.path(underlying, "_bars.csv"), 6)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetBars(underlying, fromDate, toDate, timespan, multiplier)
		}
		return nil, err
	}

	var out []Bar
	for i, row := range rows {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("bars row %d: %w", i+2, err)
		}
		if date.Before(fromDate) || date.After(toDate) {
			continue
		}

		vals := make([]float64, 5)
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64); err != nil {
				return nil, fmt.Errorf("bars row %d col %d: %w", i+2, j+2, err)
			}
		}
		out = append(out, Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Vol: vals[4]})
	}
	return out, nil
}

// GetSpotPrice returns the last close on or before asOf, within a year.
func (localCSVDataProv *localCSVDataProvider) GetSpotPrice(underlying string, asOf time.Time) (float64, error) {
	return spotFromHistory(func(from, to time.Time) ([]Bar, error) {
		return localCSVDataProv.GetBars(underlying, from, to, 1, "day")
	}, asOf)
}

// GetOptionChain reads the whole chain file. Malformed rows are skipped with a
// warning rather than failing the load.
func (localCSVDataProv *localCSVDataProvider) GetOptionChain(underlying string, asOf time.Time) ([]surface.OptionQuote, error) {
	rows, err := readCSV(localCSVDataProv.path(underlying, "_chain.csv"), 5)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetOptionChain(underlying, asOf)
		}
		return nil, err
	}

	out := make([]surface.OptionQuote, 0, len(rows))
	for i, row := range rows {
		q, err := parseQuoteRow(row)
		if err != nil {
			logger.Warnf("chain %s row %d skipped: %v", underlying, i+2, err)
			continue
		}
		out = append(out, q)
	}
	logger.Debugf("loaded %d quotes for %s from %s", len(out), underlying, localCSVDataProv.dir)
	return out, nil
}

func parseQuoteRow(row []string) (surface.OptionQuote, error) {
	kind, err := pricing.ParseKind(row[1])
	if err != nil {
		return surface.OptionQuote{}, err
	}
	strike, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return surface.OptionQuote{}, fmt.Errorf("strike: %w", err)
	}
	expiry, err := time.Parse("2006-01-02", strings.TrimSpace(row[3]))
	if err != nil {
		return surface.OptionQuote{}, fmt.Errorf("expiration: %w", err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
	if err != nil {
		return surface.OptionQuote{}, fmt.Errorf("last_price: %w", err)
	}
	return surface.OptionQuote{
		ContractSymbol: strings.TrimSpace(row[0]),
		Strike:         strike,
		Expiration:     expiry,
		LastPrice:      price,
		Kind:           kind,
	}, nil
}

// readCSV returns all data rows (header skipped) with at least minCols columns.
func readCSV(path string, minCols int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for first := true; ; first = false {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if first || len(row) < minCols {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
