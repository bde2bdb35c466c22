package surface

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Knetic/govaluate"
)

// ErrInvalidWhere is returned for a quote predicate that does not compile or
// references an unknown variable.
var ErrInvalidWhere = errors.New("invalid where expression")

// whereVars are the names a predicate may reference.
var whereVars = []string{"strike", "spot", "moneyness", "tte", "price", "kind"}

// Where is a boolean predicate over one quote, e.g.
//
//	price >= 0.05 && moneyness > 0.9
//
// kind is the string "C" or "P"; tte is the time to expiry in years.
type Where struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// ParseWhere compiles src. An empty src yields a nil *Where, which keeps every
// quote.
func ParseWhere(src string) (*Where, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWhere, err)
	}
	for _, v := range expr.Vars() {
		if !slices.Contains(whereVars, v) {
			return nil, fmt.Errorf("%w: unknown variable %q (valid: %s)", ErrInvalidWhere, v, strings.Join(whereVars, ", "))
		}
	}
	return &Where{src: src, expr: expr}, nil
}

func (w *Where) String() string {
	if w == nil {
		return ""
	}
	return w.src
}

// Keep reports whether q passes the predicate. A nil predicate keeps everything.
func (w *Where) Keep(q OptionQuote, spot, tte float64) (bool, error) {
	if w == nil {
		return true, nil
	}
	result, err := w.expr.Evaluate(map[string]interface{}{
		"strike":    q.Strike,
		"spot":      spot,
		"moneyness": q.Strike / spot,
		"tte":       tte,
		"price":     q.LastPrice,
		"kind":      q.Kind.String(),
	})
	if err != nil {
		return false, err
	}
	keep, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q yields %T, not bool", ErrInvalidWhere, w.src, result)
	}
	return keep, nil
}
