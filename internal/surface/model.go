// Package surface applies the implied-volatility solver across an option chain
// and assembles the solved rows into a table ready for surface plotting.
package surface

import (
	"math"
	"time"

	"github.com/contactkeval/iv-surface/internal/iv"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// DaysPerYear converts calendar days to year fractions.
const DaysPerYear = 365.0

// OptionQuote is one contract of an option chain as delivered by a market-data provider.
type OptionQuote struct {
	ContractSymbol string       `json:"contract_symbol"`
	Strike         float64      `json:"strike"`
	Expiration     time.Time    `json:"expiration"`
	LastPrice      float64      `json:"last_price"`
	Kind           pricing.Kind `json:"kind"`
}

// MarketContext holds the inputs shared by every quote of one batch run.
type MarketContext struct {
	Spot          float64 `json:"spot"`
	RiskFreeRate  float64 `json:"risk_free_rate"`
	DividendYield float64 `json:"dividend_yield"`
}

// Validate reports a *iv.DomainError for a non-positive spot, a negative
// dividend yield or non-finite values.
func (m MarketContext) Validate() error {
	if !(m.Spot > 0) || math.IsInf(m.Spot, 0) {
		return &iv.DomainError{Field: "spot", Value: m.Spot, Reason: "must be positive and finite"}
	}
	if math.IsNaN(m.RiskFreeRate) || math.IsInf(m.RiskFreeRate, 0) {
		return &iv.DomainError{Field: "risk_free_rate", Value: m.RiskFreeRate, Reason: "must be finite"}
	}
	if !(m.DividendYield >= 0) || math.IsInf(m.DividendYield, 0) {
		return &iv.DomainError{Field: "dividend_yield", Value: m.DividendYield, Reason: "must be non-negative and finite"}
	}
	return nil
}

// Result is one solved row of the implied-volatility table.
type Result struct {
	ContractSymbol    string       `json:"contract_symbol"`
	Kind              pricing.Kind `json:"kind"`
	Strike            float64      `json:"strike"`
	TimeToExpiry      float64      `json:"time_to_expiry"`
	ImpliedVolatility float64      `json:"implied_volatility"`
}

// Moneyness returns strike / spot.
func (r Result) Moneyness(spot float64) float64 {
	return r.Strike / spot
}

// Stats counts what happened to every quote of a batch.
type Stats struct {
	Total         int `json:"total"`
	Filtered      int `json:"filtered"`
	Solved        int `json:"solved"`
	NotBracketed  int `json:"not_bracketed"`
	NoConvergence int `json:"no_convergence"`
	Degenerate    int `json:"degenerate"`
	Rejected      int `json:"rejected"`
}

// Table is the output of one batch run. Rows keep the order in which quotes
// were supplied.
type Table struct {
	RunID       string        `json:"run_id"`
	Underlying  string        `json:"underlying,omitempty"`
	Market      MarketContext `json:"market"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Rows        []Result      `json:"rows"`
	Stats       Stats         `json:"stats"`
}

// TimeToExpiry returns the whole calendar days from evaluation to expiration,
// divided by 365. Both instants are reduced to their UTC calendar date first,
// so intraday timestamps do not shift the result. Past expirations are negative.
func TimeToExpiry(expiration, evaluation time.Time) float64 {
	days := dateOf(expiration).Sub(dateOf(evaluation)).Hours() / 24
	return math.Round(days) / DaysPerYear
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
