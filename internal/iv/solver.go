// Package iv recovers Black-Scholes implied volatility from observed option prices.
//
// The solver inverts price → volatility by running Brent's method on
// price - model(v) over a configurable volatility bracket. Numeric failures are
// reported as *UnsolvableError, invalid inputs as *DomainError.
package iv

import (
	"errors"
	"math"

	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/rootfind"
)

// Config holds the numeric policy of the solver. The defaults search
// [-200%, +200%] annualised volatility with a 1e-6 tolerance; callers can widen
// the bracket for exotic underlyings.
type Config struct {
	LowerBound float64 `json:"lower_bound" toml:"lower_bound"`
	UpperBound float64 `json:"upper_bound" toml:"upper_bound"`
	Tolerance  float64 `json:"tolerance" toml:"tolerance"`
	MaxIter    int     `json:"max_iter" toml:"max_iter"`
}

// DefaultConfig returns the bracket [-2, 2], tolerance 1e-6 and 100 iterations.
func DefaultConfig() Config {
	return Config{
		LowerBound: -2,
		UpperBound: 2,
		Tolerance:  1e-6,
		MaxIter:    100,
	}
}

// Validate reports a *DomainError for a bracket that cannot contain a positive
// volatility or for non-positive tolerances.
func (c Config) Validate() error {
	switch {
	case !(c.UpperBound > 0) || math.IsInf(c.UpperBound, 0):
		return &DomainError{Field: "upper_bound", Value: c.UpperBound, Reason: "must be positive and finite"}
	case math.IsNaN(c.LowerBound) || math.IsInf(c.LowerBound, 0) || c.LowerBound >= c.UpperBound:
		return &DomainError{Field: "lower_bound", Value: c.LowerBound, Reason: "must be finite and below upper_bound"}
	case !(c.Tolerance > 0):
		return &DomainError{Field: "tolerance", Value: c.Tolerance, Reason: "must be positive"}
	case c.MaxIter <= 0:
		return &DomainError{Field: "max_iter", Value: c.MaxIter, Reason: "must be positive"}
	}
	return nil
}

// Solver inverts Black-Scholes prices under a fixed Config. It holds no
// mutable state and is safe for concurrent use.
type Solver struct {
	cfg Config
}

// NewSolver validates cfg and returns a Solver.
func NewSolver(cfg Config) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Solver{cfg: cfg}, nil
}

// Config returns the solver's numeric policy.
func (s *Solver) Config() Config { return s.cfg }

var defaultSolver = &Solver{cfg: DefaultConfig()}

// ImpliedVol solves with DefaultConfig.
func ImpliedVol(kind pricing.Kind, S, X, r, T, price, q float64) (float64, error) {
	return defaultSolver.ImpliedVol(kind, S, X, r, T, price, q)
}

// Dispatch solves with DefaultConfig, routing on a "C"/"P" discriminator.
func Dispatch(tag string, S, X, r, T, price, q float64) (float64, error) {
	return defaultSolver.Dispatch(tag, S, X, r, T, price, q)
}

// ImpliedVol returns the volatility v for which the Black-Scholes value of the
// option equals price.
//
// Parameters:
//   - kind: Call or Put
//   - S: spot price, X: strike, r: risk-free rate, T: years to expiry
//   - price: observed option price
//   - q: continuous dividend yield (always explicit)
//
// Returns:
//   - the solved volatility (annualised, > Tolerance)
//   - *DomainError for non-positive S, X, T, negative price or non-finite inputs
//   - *UnsolvableError when the price is unreachable within the bracket, the
//     root finder stalls, or the root collapses to (or below) the tolerance
func (s *Solver) ImpliedVol(kind pricing.Kind, S, X, r, T, price, q float64) (float64, error) {
	if err := checkInputs(kind, S, X, r, T, price, q); err != nil {
		return 0, err
	}

	// The v→0⁺ limit is a strict lower bound on the model price. A quote at or
	// under it has no positive solution; searching anyway lets an underflowing
	// model price pose as a root.
	if floor := pricing.Value(kind, S, X, r, T, 0, q); price <= floor {
		return 0, &UnsolvableError{Reason: ReasonDegenerateRoot}
	}

	objective := func(v float64) float64 {
		return price - pricing.Value(kind, S, X, r, T, v, q)
	}

	opts := rootfind.DefaultOptions()
	opts.XTol = s.cfg.Tolerance
	opts.MaxIter = s.cfg.MaxIter

	root, err := rootfind.Brent(objective, s.cfg.LowerBound, s.cfg.UpperBound, opts)
	switch {
	case errors.Is(err, rootfind.ErrNotBracketed):
		return 0, &UnsolvableError{Reason: ReasonNotBracketed, Err: err}
	case errors.Is(err, rootfind.ErrNoConvergence):
		return 0, &UnsolvableError{Reason: ReasonNoConvergence, Root: root, Err: err}
	case err != nil:
		return 0, &DomainError{Field: "bracket", Value: [2]float64{s.cfg.LowerBound, s.cfg.UpperBound}, Reason: err.Error()}
	}

	// A root this close to zero means the search ran into the kink of the
	// objective at v=0 rather than a genuine solution.
	if root <= s.cfg.Tolerance {
		return 0, &UnsolvableError{Reason: ReasonDegenerateRoot, Root: root}
	}
	return root, nil
}

// Dispatch routes to ImpliedVol using the exact option-kind discriminator "C"
// or "P". Any other tag, including "call" or "c", is a *DomainError; feeds with
// looser spellings go through pricing.ParseKind first.
func (s *Solver) Dispatch(tag string, S, X, r, T, price, q float64) (float64, error) {
	var kind pricing.Kind
	switch tag {
	case "C":
		kind = pricing.Call
	case "P":
		kind = pricing.Put
	default:
		return 0, &DomainError{Field: "kind", Value: tag, Reason: "expected C or P"}
	}
	return s.ImpliedVol(kind, S, X, r, T, price, q)
}

func checkInputs(kind pricing.Kind, S, X, r, T, price, q float64) error {
	if kind != pricing.Call && kind != pricing.Put {
		return &DomainError{Field: "kind", Value: kind, Reason: "expected C or P"}
	}
	for _, in := range []struct {
		name string
		val  float64
	}{{"spot", S}, {"strike", X}, {"time", T}} {
		if !(in.val > 0) || math.IsInf(in.val, 0) {
			return &DomainError{Field: in.name, Value: in.val, Reason: "must be positive and finite"}
		}
	}
	if !(price >= 0) || math.IsInf(price, 0) {
		return &DomainError{Field: "price", Value: price, Reason: "must be non-negative and finite"}
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return &DomainError{Field: "rate", Value: r, Reason: "must be finite"}
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return &DomainError{Field: "dividend_yield", Value: q, Reason: "must be finite"}
	}
	return nil
}
