// Package rootfind provides a bracketed, derivative-free root finder.
//
// Brent combines bisection, the secant method and inverse quadratic
// interpolation. Every iteration keeps a bracket [xcur, xblk] across which f
// changes sign and the bracket never grows, so the method cannot diverge the
// way Newton-Raphson does on flat or kinked objectives.
package rootfind

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotBracketed means f(lower) and f(upper) do not have opposite signs.
	ErrNotBracketed = errors.New("root not bracketed")

	// ErrNoConvergence means the iteration cap was reached before the bracket
	// shrank below the tolerance.
	ErrNoConvergence = errors.New("root finder did not converge")

	// ErrInvalidInterval means the bounds or tolerances cannot describe a search.
	ErrInvalidInterval = errors.New("invalid search interval")
)

// Options tune the stopping rule. The search stops once the bracket half-width
// drops below (XTol + RTol*|x|)/2.
type Options struct {
	XTol    float64 // absolute tolerance on the independent variable
	RTol    float64 // relative tolerance on the independent variable
	MaxIter int     // hard cap on function evaluations after the two endpoints
}

// DefaultOptions mirrors the usual brentq defaults with an absolute tolerance of 1e-6.
func DefaultOptions() Options {
	return Options{
		XTol:    1e-6,
		RTol:    4 * epsilon,
		MaxIter: 100,
	}
}

const epsilon = 2.220446049250313e-16

// Brent finds x in [lower, upper] with f(x) ≈ 0.
//
// Parameters:
//   - f: objective, evaluated only inside [lower, upper]
//   - lower, upper: bracket endpoints, lower < upper
//   - opts: tolerances and iteration cap
//
// Returns:
//   - the root estimate
//   - ErrNotBracketed when f does not change sign across the bracket (or an
//     endpoint evaluates to NaN/Inf)
//   - ErrNoConvergence, together with the best estimate so far, when MaxIter is hit
//   - ErrInvalidInterval for reversed bounds or non-positive tolerances
func Brent(f func(float64) float64, lower, upper float64, opts Options) (float64, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) || !(lower < upper) {
		return 0, fmt.Errorf("%w: [%v, %v]", ErrInvalidInterval, lower, upper)
	}
	if opts.XTol <= 0 || opts.RTol < 0 || opts.MaxIter <= 0 {
		return 0, fmt.Errorf("%w: xtol=%v rtol=%v maxiter=%d", ErrInvalidInterval, opts.XTol, opts.RTol, opts.MaxIter)
	}

	xpre, xcur := lower, upper
	fpre, fcur := f(xpre), f(xcur)

	if !finite(fpre) || !finite(fcur) {
		return 0, fmt.Errorf("%w: f(%v)=%v, f(%v)=%v", ErrNotBracketed, xpre, fpre, xcur, fcur)
	}
	if fpre == 0 {
		return xpre, nil
	}
	if fcur == 0 {
		return xcur, nil
	}
	if math.Signbit(fpre) == math.Signbit(fcur) {
		return 0, fmt.Errorf("%w: f(%v)=%v, f(%v)=%v", ErrNotBracketed, xpre, fpre, xcur, fcur)
	}

	// xblk is the contrapoint: f(xblk) and f(xcur) always have opposite signs.
	var (
		xblk, fblk float64
		spre, scur float64
	)

	for i := 0; i < opts.MaxIter; i++ {
		if fpre != 0 && fcur != 0 && math.Signbit(fpre) != math.Signbit(fcur) {
			xblk, fblk = xpre, fpre
			spre = xcur - xpre
			scur = spre
		}
		// keep xcur as the endpoint with the smaller residual
		if math.Abs(fblk) < math.Abs(fcur) {
			xpre, xcur, xblk = xcur, xblk, xcur
			fpre, fcur, fblk = fcur, fblk, fcur
		}

		delta := (opts.XTol + opts.RTol*math.Abs(xcur)) / 2
		sbis := (xblk - xcur) / 2
		if fcur == 0 || math.Abs(sbis) < delta {
			return xcur, nil
		}

		if math.Abs(spre) > delta && math.Abs(fcur) < math.Abs(fpre) {
			var stry float64
			if xpre == xblk {
				// secant
				stry = -fcur * (xcur - xpre) / (fcur - fpre)
			} else {
				// inverse quadratic interpolation
				dpre := (fpre - fcur) / (xpre - xcur)
				dblk := (fblk - fcur) / (xblk - xcur)
				stry = -fcur * (fblk*dblk - fpre*dpre) / (dblk * dpre * (fblk - fpre))
			}

			if 2*math.Abs(stry) < math.Min(math.Abs(spre), 3*math.Abs(sbis)-delta) {
				spre, scur = scur, stry
			} else {
				spre, scur = sbis, sbis
			}
		} else {
			spre, scur = sbis, sbis
		}

		xpre, fpre = xcur, fcur
		if math.Abs(scur) > delta {
			xcur += scur
		} else if sbis > 0 {
			xcur += delta
		} else {
			xcur -= delta
		}

		fcur = f(xcur)
		if math.IsNaN(fcur) {
			return xcur, fmt.Errorf("%w: f(%v) is NaN", ErrNoConvergence, xcur)
		}
	}

	return xcur, fmt.Errorf("%w after %d iterations", ErrNoConvergence, opts.MaxIter)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
