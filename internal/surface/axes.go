package surface

import (
	"fmt"
	"strings"
)

// Axis selects what the second surface coordinate shows.
type Axis int

const (
	AxisStrike    Axis = iota // strike price
	AxisMoneyness             // strike / spot
)

// ParseAxis accepts "strike" or "moneyness".
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strike", "strike price":
		return AxisStrike, nil
	case "moneyness":
		return AxisMoneyness, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

func (a Axis) String() string {
	if a == AxisMoneyness {
		return "moneyness"
	}
	return "strike"
}

// Axes returns three aligned coordinate slices for surface rendering:
// x is time to expiry in years, y is strike or moneyness, and z is implied
// volatility in percent.
func (t *Table) Axes(axis Axis) (x, y, z []float64) {
	x = make([]float64, len(t.Rows))
	y = make([]float64, len(t.Rows))
	z = make([]float64, len(t.Rows))

	for i, r := range t.Rows {
		x[i] = r.TimeToExpiry
		if axis == AxisMoneyness {
			y[i] = r.Moneyness(t.Market.Spot)
		} else {
			y[i] = r.Strike
		}
		z[i] = r.ImpliedVolatility * 100
	}
	return x, y, z
}
