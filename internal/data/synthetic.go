package data

import (
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// SyntheticConfig shapes the generated market. Quotes are priced with the
// Black-Scholes model on a volatility smile, so their implied volatilities are
// known exactly.
type SyntheticConfig struct {
	Spot          float64
	RiskFreeRate  float64
	DividendYield float64
	BaseVol       float64   // at-the-money volatility
	Skew          float64   // slope of vol in log-moneyness (negative = equity skew)
	Smile         float64   // curvature of vol in log-moneyness
	ExpiryDays    []int     // days from asOf to each expiry
	StrikePcts    []float64 // strikes as percent of spot
	Seed          int64     // seeds the bar random walk

	// InjectBadQuotes appends, per expiry, a call quoted above spot and an
	// at-the-money call quoted at zero, plus one already expired contract.
	InjectBadQuotes bool
}

// DefaultSyntheticConfig mimics an index chain: weekly to one-year expiries,
// strikes from 50% to 150% of spot.
func DefaultSyntheticConfig() SyntheticConfig {
	pcts := make([]float64, 0, 21)
	for p := 50.0; p <= 150; p += 5 {
		pcts = append(pcts, p)
	}
	return SyntheticConfig{
		Spot:          100,
		RiskFreeRate:  0.01,
		DividendYield: 0.001,
		BaseVol:       0.2,
		Skew:          -0.15,
		Smile:         0.4,
		ExpiryDays:    []int{7, 14, 30, 60, 90, 180, 270, 365},
		StrikePcts:    pcts,
		Seed:          1,
	}
}

// synthDataProvider implements Data Provider generating synthetic data.
type synthDataProvider struct {
	cfg       SyntheticConfig
	secondary Provider
}

func NewSyntheticProvider() Provider { return NewSyntheticProviderWith(DefaultSyntheticConfig()) }

func NewSyntheticProviderWith(cfg SyntheticConfig) Provider {
	return &synthDataProvider{cfg: cfg}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

// VolAt returns the smile volatility for strike and expiry T.
func (cfg SyntheticConfig) VolAt(strike, T float64) float64 {
	fwd := cfg.Spot * math.Exp((cfg.RiskFreeRate-cfg.DividendYield)*T)
	k := math.Log(strike / fwd)
	return math.Max(0.05, cfg.BaseVol+cfg.Skew*k+cfg.Smile*k*k)
}

// GetBars returns a seeded random walk that ends exactly at cfg.Spot on toDate.
func (synthDataProv *synthDataProvider) GetBars(underlying string, fromDate, toDate time.Time, timespan int, multiplier string) ([]Bar, error) {
	rng := rand.New(rand.NewSource(synthDataProv.cfg.Seed))

	var days []time.Time
	for cur := fromDate; !cur.After(toDate); cur = cur.AddDate(0, 0, 1) {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			days = append(days, cur)
		}
	}

	// walk backwards from the configured spot so the last close is deterministic
	out := make([]Bar, len(days))
	price := synthDataProv.cfg.Spot
	for i := len(days) - 1; i >= 0; i-- {
		close := price
		open := close / (1 + rng.NormFloat64()*0.01)
		high := math.Max(open, close) + math.Abs(rng.NormFloat64()*0.3)
		low := math.Min(open, close) - math.Abs(rng.NormFloat64()*0.3)
		out[i] = Bar{Date: days[i], Open: open, High: high, Low: low, Close: close, Vol: float64(1000 + rng.Intn(5000))}
		price = open
	}
	return out, nil
}

// GetSpotPrice always returns the configured spot.
func (synthDataProv *synthDataProvider) GetSpotPrice(underlying string, asOf time.Time) (float64, error) {
	return synthDataProv.cfg.Spot, nil
}

// GetOptionChain prices calls and puts for every configured expiry and strike.
func (synthDataProv *synthDataProvider) GetOptionChain(underlying string, asOf time.Time) ([]surface.OptionQuote, error) {
	cfg := synthDataProv.cfg
	out := make([]surface.OptionQuote, 0, 2*len(cfg.ExpiryDays)*len(cfg.StrikePcts))

	for _, days := range cfg.ExpiryDays {
		expiry := asOf.AddDate(0, 0, days)
		T := surface.TimeToExpiry(expiry, asOf)
		if T <= 0 {
			continue
		}
		for _, kind := range []pricing.Kind{pricing.Call, pricing.Put} {
			for _, pct := range cfg.StrikePcts {
				strike := math.Round(cfg.Spot*pct) / 100
				price, err := pricing.Price(kind, cfg.Spot, strike, cfg.RiskFreeRate, T, cfg.VolAt(strike, T), cfg.DividendYield)
				if err != nil {
					return nil, err
				}
				out = append(out, surface.OptionQuote{
					ContractSymbol: OptionSymbolFromParts(underlying, expiry, kind.String(), strike),
					Strike:         strike,
					Expiration:     expiry,
					LastPrice:      price,
					Kind:           kind,
				})
			}
		}
		if cfg.InjectBadQuotes {
			out = append(out, badQuotes(underlying, cfg.Spot, expiry)...)
		}
	}

	if cfg.InjectBadQuotes {
		expired := asOf.AddDate(0, 0, -1)
		out = append(out, surface.OptionQuote{
			ContractSymbol: OptionSymbolFromParts(underlying, expired, "C", cfg.Spot),
			Strike:         cfg.Spot,
			Expiration:     expired,
			LastPrice:      1,
			Kind:           pricing.Call,
		})
	}
	return out, nil
}

// badQuotes returns two calls no volatility can explain: one priced above spot
// and one at-the-money priced at zero.
func badQuotes(underlying string, spot float64, expiry time.Time) []surface.OptionQuote {
	return []surface.OptionQuote{
		{
			ContractSymbol: OptionSymbolFromParts(underlying, expiry, "C", spot*0.9),
			Strike:         spot * 0.9,
			Expiration:     expiry,
			LastPrice:      spot * 1.5,
			Kind:           pricing.Call,
		},
		{
			ContractSymbol: OptionSymbolFromParts(underlying, expiry, "C", spot),
			Strike:         spot,
			Expiration:     expiry,
			Kind:           pricing.Call,
		},
	}
}
