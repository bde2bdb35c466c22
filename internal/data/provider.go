package data

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/iv-surface/internal/surface"
)

// Provider supplies spot history and option chains.
//
// Every implementation may carry a secondary Provider; when it cannot serve a
// request itself it delegates to the secondary instead of failing.
type Provider interface {
	Secondary() Provider
	GetBars(underlying string, fromDate, toDate time.Time, timespan int, multiplier string) ([]Bar, error)
	GetSpotPrice(underlying string, asOf time.Time) (float64, error)
	GetOptionChain(underlying string, asOf time.Time) ([]surface.OptionQuote, error)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// GetSpotPrice first searches spotLookback for a daily close, then widens to
// spotFallbackLookback for thinly traded or suspended underlyings.
const (
	spotLookback         = 10 * 24 * time.Hour
	spotFallbackLookback = 365 * 24 * time.Hour
)

// spotFromHistory returns the last close on or before asOf, trying the short
// lookback before the one-year fallback.
func spotFromHistory(getBars func(from, to time.Time) ([]Bar, error), asOf time.Time) (float64, error) {
	var lastErr error
	for _, lookback := range []time.Duration{spotLookback, spotFallbackLookback} {
		bars, err := getBars(asOf.Add(-lookback), asOf)
		if err != nil {
			return 0, err
		}
		spot, err := lastCloseOnOrBefore(bars, asOf)
		if err == nil {
			return spot, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// lastCloseOnOrBefore returns the close of the latest bar dated on or before asOf.
func lastCloseOnOrBefore(bars []Bar, asOf time.Time) (float64, error) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Date.After(asOf) && bars[i].Close > 0 {
			return bars[i].Close, nil
		}
	}
	return 0, fmt.Errorf("no close on or before %s", asOf.Format("2006-01-02"))
}

// OptionSymbolFromParts builds an OCC-style contract symbol:
// O:<root><YYMMDD><C|P><strike*1000 padded to 8 digits>.
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType string, strike float64) string {
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if strings.ToLower(optionType) == "put" || strings.ToLower(optionType) == "p" {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}
