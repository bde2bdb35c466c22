package data

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/pricing"
)

var asOf = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func newTestMassive(srv *httptest.Server) *massiveDataProvider {
	return &massiveDataProvider{
		APIKey:        "test",
		Client:        srv.Client(),
		BaseURL:       srv.URL,
		rateLimitWait: func() time.Duration { return 0 },
	}
}

func TestMassiveProvider_ChainPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))

		if r.URL.Path == "/v3/snapshot/options/SPY" {
			w.Write([]byte(`{
				"status": "OK",
				"results": [
					{"details": {"contract_type": "call", "expiration_date": "2025-06-20", "strike_price": 580, "ticker": "O:SPY250620C00580000"},
					 "last_trade": {"price": 31.5}},
					{"details": {"contract_type": "put", "expiration_date": "2025-06-20", "strike_price": 560, "ticker": "O:SPY250620P00560000"},
					 "last_quote": {"bid": 10, "ask": 11}}
				],
				"next_url": "` + srv.URL + `/page2"
			}`))
			return
		}

		w.Write([]byte(`{
			"status": "OK",
			"results": [
				{"details": {"contract_type": "call", "expiration_date": "2025-09-19", "strike_price": 600, "ticker": "O:SPY250919C00600000"},
				 "day": {"close": 22.25}},
				{"details": {"contract_type": "call", "expiration_date": "2025-09-19", "strike_price": 700, "ticker": "O:SPY250919C00700000"}},
				{"details": {"contract_type": "future", "expiration_date": "2025-09-19", "strike_price": 600, "ticker": "BAD"},
				 "last_trade": {"price": 1}}
			]
		}`))
	}))
	defer srv.Close()

	quotes, err := newTestMassive(srv).GetOptionChain("SPY", asOf)
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	assert.Equal(t, "O:SPY250620C00580000", quotes[0].ContractSymbol)
	assert.Equal(t, pricing.Call, quotes[0].Kind)
	assert.Equal(t, 31.5, quotes[0].LastPrice)
	assert.Equal(t, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), quotes[0].Expiration)

	assert.Equal(t, pricing.Put, quotes[1].Kind)
	assert.Equal(t, 10.5, quotes[1].LastPrice)

	assert.Equal(t, 22.25, quotes[2].LastPrice)
	assert.Equal(t, 600.0, quotes[2].Strike)
}

func TestMassiveProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer srv.Close()

	_, err := newTestMassive(srv).GetBars("AAPL", asOf.AddDate(0, 0, -5), asOf, 1, "day")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
}

func TestMassiveProvider_RateLimitRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v2/aggs/ticker/AAPL/range/1/day/"))
		w.Write([]byte(`{"results": [
			{"t": 1735689600000, "o": 1, "h": 2, "l": 0.5, "c": 1.5, "v": 100},
			{"t": 1735776000000, "o": 1.5, "h": 2, "l": 1, "c": 1.8, "v": 100}
		]}`))
	}))
	defer srv.Close()

	spot, err := newTestMassive(srv).GetSpotPrice("AAPL", asOf)
	require.NoError(t, err)
	assert.Equal(t, 1.8, spot)
	assert.Equal(t, 3, calls)
}

func TestMassiveProvider_FallsBackToSecondary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"plan does not include options"}`))
	}))
	defer srv.Close()

	prov := newTestMassive(srv)
	prov.secondary = NewSyntheticProvider()

	quotes, err := prov.GetOptionChain("SPY", asOf)
	require.NoError(t, err)
	assert.NotEmpty(t, quotes)
	assert.NotNil(t, prov.Secondary())
}

func TestOptionSymbolFromParts(t *testing.T) {
	expiry := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "O:SPY250117C00580000", OptionSymbolFromParts("spy", expiry, "call", 580))
	assert.Equal(t, "O:SPY250117P00582500", OptionSymbolFromParts("SPY", expiry, "P", 582.5))
}
