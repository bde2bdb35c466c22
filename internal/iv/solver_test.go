package iv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/pricing"
)

func TestImpliedVolRoundTrip(t *testing.T) {
	const (
		S = 100.0
		r = 0.02
		q = 0.01
	)

	for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
		for _, X := range []float64{90, 100, 110} {
			for _, T := range []float64{0.25, 1, 2} {
				for _, v := range []float64{0.15, 0.35, 0.8, 1.5, 1.95} {
					price, err := pricing.Price(kind, S, X, r, T, v, q)
					require.NoError(t, err)

					got, err := ImpliedVol(kind, S, X, r, T, price, q)
					require.NoError(t, err, "%v X=%v T=%v v=%v", kind, X, T, v)
					assert.InDelta(t, v, got, 2e-6, "%v X=%v T=%v v=%v", kind, X, T, v)
				}
			}
		}
	}
}

func TestImpliedVolLowVolatilityAtTheMoney(t *testing.T) {
	for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
		for _, v := range []float64{0.01, 0.03} {
			price, err := pricing.Price(kind, 100, 100, 0.01, 0.5, v, 0.001)
			require.NoError(t, err)

			got, err := ImpliedVol(kind, 100, 100, 0.01, 0.5, price, 0.001)
			require.NoError(t, err, "%v v=%v", kind, v)
			assert.InDelta(t, v, got, 2e-6, "%v v=%v", kind, v)
		}
	}
}

func TestDispatchMatchesKindEntryPoint(t *testing.T) {
	price, err := pricing.Price(pricing.Put, 100, 95, 0.01, 0.5, 0.3, 0.001)
	require.NoError(t, err)

	viaKind, err := ImpliedVol(pricing.Put, 100, 95, 0.01, 0.5, price, 0.001)
	require.NoError(t, err)
	viaTag, err := Dispatch("P", 100, 95, 0.01, 0.5, price, 0.001)
	require.NoError(t, err)

	assert.Equal(t, viaKind, viaTag)
}

func TestDispatchUnknownKind(t *testing.T) {
	for _, tag := range []string{"X", "", "straddle", "call", "put", "c", "p", "Call", " P ", "C "} {
		v, err := Dispatch(tag, 100, 100, 0.01, 0.5, 5, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDomain), "tag %q: %v", tag, err)
		assert.False(t, errors.Is(err, ErrUnsolvable))
		assert.Zero(t, v)
	}
}

func TestPriceAboveSpotIsNotBracketed(t *testing.T) {
	_, err := Dispatch("C", 100, 100, 0.01, 0.5, 150, 0)
	require.ErrorIs(t, err, ErrUnsolvable)
	assert.Equal(t, ReasonNotBracketed, ReasonOf(err))
}

func TestBelowIntrinsicIsDegenerate(t *testing.T) {
	// Deep in-the-money call quoted far under intrinsic: the only sign change
	// sits at v=0, so the root collapses onto the tolerance.
	_, err := ImpliedVol(pricing.Call, 100, 50, 0.01, 0.5, 0.01, 0)
	require.ErrorIs(t, err, ErrUnsolvable)
	assert.Equal(t, ReasonDegenerateRoot, ReasonOf(err))

	_, err = ImpliedVol(pricing.Call, 100, 100, 0.01, 0.5, 0, 0)
	require.ErrorIs(t, err, ErrUnsolvable)
	assert.Equal(t, ReasonDegenerateRoot, ReasonOf(err))
}

func TestPriceAtOrUnderFloorIsDegenerate(t *testing.T) {
	const (
		S = 100.0
		r = 0.01
		q = 0.001
	)
	for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
		for _, X := range []float64{70, 80, 95, 100, 105, 120, 130} {
			for _, T := range []float64{60.0 / 365, 0.5, 2} {
				floor := pricing.Value(kind, S, X, r, T, 0, q)
				prices := []float64{0, floor}
				if floor > 0.5 {
					prices = append(prices, floor-0.5)
				}
				for _, price := range prices {
					v, err := ImpliedVol(kind, S, X, r, T, price, q)
					require.ErrorIs(t, err, ErrUnsolvable, "%v X=%v T=%v price=%v got v=%v", kind, X, T, price, v)
					assert.Equal(t, ReasonDegenerateRoot, ReasonOf(err))
					assert.Zero(t, v)
				}
			}
		}
	}
}

func TestFarOutOfTheMoneyPremiumStillInverts(t *testing.T) {
	T := 180.0 / 365.0
	v, err := ImpliedVol(pricing.Call, 100, 500, 0.01, T, 0.01, 0)
	require.NoError(t, err)
	assert.Greater(t, v, 0.5)
	assert.Less(t, v, 1.0)

	repriced, err := pricing.Price(pricing.Call, 100, 500, 0.01, T, v, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, repriced, 1e-6)
}

func TestWiderBracketReachesHighVolatility(t *testing.T) {
	price, err := pricing.Price(pricing.Call, 100, 100, 0.01, 1, 3, 0)
	require.NoError(t, err)

	_, err = ImpliedVol(pricing.Call, 100, 100, 0.01, 1, price, 0)
	assert.Equal(t, ReasonNotBracketed, ReasonOf(err))

	wide, err := NewSolver(Config{LowerBound: 0.01, UpperBound: 5, Tolerance: 1e-8, MaxIter: 200})
	require.NoError(t, err)

	v, err := wide.ImpliedVol(pricing.Call, 100, 100, 0.01, 1, price, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3, v, 1e-6)
}

func TestIterationCapIsDistinct(t *testing.T) {
	s, err := NewSolver(Config{LowerBound: -2, UpperBound: 2, Tolerance: 1e-12, MaxIter: 2})
	require.NoError(t, err)

	price, err := pricing.Price(pricing.Call, 100, 100, 0.01, 1, 0.4, 0)
	require.NoError(t, err)

	_, err = s.ImpliedVol(pricing.Call, 100, 100, 0.01, 1, price, 0)
	require.ErrorIs(t, err, ErrUnsolvable)
	assert.Equal(t, ReasonNoConvergence, ReasonOf(err))
}

func TestImpliedVolDomainErrors(t *testing.T) {
	cases := map[string][6]float64{
		"zero spot":       {0, 100, 0.01, 0.5, 5, 0},
		"negative strike": {100, -100, 0.01, 0.5, 5, 0},
		"zero time":       {100, 100, 0.01, 0, 5, 0},
		"negative price":  {100, 100, 0.01, 0.5, -1, 0},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ImpliedVol(pricing.Call, in[0], in[1], in[2], in[3], in[4], in[5])
			var de *DomainError
			require.ErrorAs(t, err, &de)
			assert.ErrorIs(t, err, ErrDomain)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{LowerBound: -2, UpperBound: 0, Tolerance: 1e-6, MaxIter: 100},
		{LowerBound: -2, UpperBound: -1, Tolerance: 1e-6, MaxIter: 100},
		{LowerBound: 3, UpperBound: 2, Tolerance: 1e-6, MaxIter: 100},
		{LowerBound: -2, UpperBound: 2, Tolerance: 0, MaxIter: 100},
		{LowerBound: -2, UpperBound: 2, Tolerance: 1e-6, MaxIter: 0},
	}
	for _, cfg := range bad {
		_, err := NewSolver(cfg)
		assert.ErrorIs(t, err, ErrDomain, "%+v", cfg)
	}
}
