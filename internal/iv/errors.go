package iv

import (
	"errors"
	"fmt"
)

var (
	// ErrDomain matches every *DomainError.
	ErrDomain = errors.New("domain error")

	// ErrUnsolvable matches every *UnsolvableError.
	ErrUnsolvable = errors.New("volatility unsolvable")
)

// DomainError reports configuration or input that is invalid before any
// numeric work starts. It is a hard failure for the caller.
type DomainError struct {
	Field  string
	Value  any
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// Reason classifies why a quote could not be inverted.
type Reason int

const (
	ReasonNotBracketed   Reason = iota + 1 // objective has no sign change across the bracket
	ReasonNoConvergence                    // iteration cap hit
	ReasonDegenerateRoot                   // root at or below the tolerance
)

func (r Reason) String() string {
	switch r {
	case ReasonNotBracketed:
		return "not_bracketed"
	case ReasonNoConvergence:
		return "no_convergence"
	case ReasonDegenerateRoot:
		return "degenerate_root"
	}
	return "unknown"
}

// UnsolvableError is the numeric failure outcome of the solver. Batch callers
// drop the row; Reason and Root are kept for diagnostics.
type UnsolvableError struct {
	Reason Reason
	Root   float64 // last root estimate, meaningful for ReasonDegenerateRoot/ReasonNoConvergence
	Err    error   // underlying root-finder error, if any
}

func (e *UnsolvableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("volatility unsolvable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("volatility unsolvable (%s): root=%g", e.Reason, e.Root)
}

func (e *UnsolvableError) Is(target error) bool { return target == ErrUnsolvable }

func (e *UnsolvableError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from err, or 0 when err is not an *UnsolvableError.
func ReasonOf(err error) Reason {
	var ue *UnsolvableError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return 0
}
