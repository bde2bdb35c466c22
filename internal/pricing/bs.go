package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Kind identifies the payoff of a European option.
type Kind int

const (
	Call Kind = iota // Call pays max(S-X, 0) at expiry.
	Put              // Put pays max(X-S, 0) at expiry.
)

var (
	// ErrInvalidInput is returned by Price when an input lies outside the model's domain.
	ErrInvalidInput = errors.New("invalid pricing input")

	// ErrUnknownKind is returned by ParseKind for a discriminator other than call/put.
	ErrUnknownKind = errors.New("unknown option kind")
)

// String returns the single-letter discriminator used by option chains ("C" or "P").
func (k Kind) String() string {
	switch k {
	case Call:
		return "C"
	case Put:
		return "P"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind as its discriminator.
func (k Kind) MarshalText() ([]byte, error) {
	if k != Call && k != Put {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText accepts anything ParseKind accepts.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind maps an option-kind discriminator to a Kind.
// "C"/"P" are the canonical tags; "call"/"put" are accepted as spelled by market-data feeds.
func ParseKind(tag string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "c", "call":
		return Call, nil
	case "p", "put":
		return Put, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
}

// Price calculates the value of a European option under Black-Scholes with a
// continuous dividend yield.
//
// Parameters:
//   - kind: Call or Put
//   - S: spot price of the underlying asset
//   - X: strike price of the option
//   - r: risk-free interest rate (annual, continuously compounded, may be negative)
//   - T: time to expiry in years
//   - v: volatility of the underlying asset (annual, as a decimal)
//   - q: continuous dividend yield
//
// Returns:
//
//	The theoretical option value, or ErrInvalidInput when S, X, T or v is not
//	strictly positive or any input is not finite.
func Price(kind Kind, S, X, r, T, v, q float64) (float64, error) {
	for _, in := range []struct {
		name string
		val  float64
	}{{"spot", S}, {"strike", X}, {"time", T}, {"volatility", v}} {
		if !(in.val > 0) || math.IsInf(in.val, 0) {
			return 0, fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidInput, in.name, in.val)
		}
	}
	if math.IsNaN(r) || math.IsInf(r, 0) || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, fmt.Errorf("%w: rate and dividend yield must be finite", ErrInvalidInput)
	}
	if kind != Call && kind != Put {
		return 0, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return Value(kind, S, X, r, T, v, q), nil
}

// Value is the unchecked Black-Scholes kernel behind Price.
//
// It is evaluated by the implied-volatility objective across a bracket that may
// include non-positive volatilities, so it is total over v: negative v runs
// through the same closed form and v == 0 yields the v→0⁺ limit (the
// discounted forward intrinsic value). Callers must still supply S, X > 0 and T > 0.
func Value(kind Kind, S, X, r, T, v, q float64) float64 {
	fwdS := S * math.Exp(-q*T)
	pvX := X * math.Exp(-r*T)

	if v == 0 {
		if kind == Call {
			return math.Max(0, fwdS-pvX)
		}
		return math.Max(0, pvX-fwdS)
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/X) + (r-q+0.5*v*v)*T) / (v * sqrtT)
	d2 := d1 - v*sqrtT

	if kind == Call {
		return fwdS*normCDF(d1) - pvX*normCDF(d2)
	}
	return pvX*normCDF(-d2) - fwdS*normCDF(-d1)
}

// Vega calculates the sensitivity of the option value to volatility (per unit
// of volatility, not per percentage point). Calls and puts share the same vega.
// Returns 0 if T or v is non-positive.
func Vega(S, X, r, T, v, q float64) float64 {
	if T <= 0 || v <= 0 {
		return 0
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/X) + (r-q+0.5*v*v)*T) / (v * sqrtT)
	return S * math.Exp(-q*T) * normPDF(d1) * sqrtT
}

// ParityGap returns call - put as implied by put-call parity: S·e^(-qT) - X·e^(-rT).
func ParityGap(S, X, r, T, q float64) float64 {
	return S*math.Exp(-q*T) - X*math.Exp(-r*T)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// normCDF is the standard normal CDF. distuv evaluates it through erfc, which
// keeps relative accuracy far into the lower tail where 0.5*(1+erf) cancels.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
