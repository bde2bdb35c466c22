// Package data provides market data provider implementations.
//
// This file contains a Massive-backed Provider that retrieves daily bars and
// option-chain snapshots over the Massive (formerly Polygon) REST API.
//
// Design notes:
//   - Uses raw HTTP calls instead of an SDK
//   - Follows next_url pagination and waits out per-minute rate limits
//   - Logging is verbose at Debug/Trace levels for diagnostics
package data

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// DefaultMassiveBaseURL is the public Massive REST endpoint.
const DefaultMassiveBaseURL = "https://api.massive.com"

// maxRateLimitRetries bounds how many 429 responses one request tolerates.
const maxRateLimitRetries = 5

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	// rateLimitWait returns how long to sleep after a 429.
	rateLimitWait func() time.Duration

	// secondary is an optional fallback provider.
	secondary Provider
}

// massiveSnapshot is one contract of the option-chain snapshot endpoint.
type massiveSnapshot struct {
	Details struct {
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
		Ticker         string  `json:"ticker"`
	} `json:"details"`
	Day struct {
		Close float64 `json:"close"`
	} `json:"day"`
	LastQuote struct {
		Bid      float64 `json:"bid"`
		Ask      float64 `json:"ask"`
		Midpoint float64 `json:"midpoint"`
	} `json:"last_quote"`
	LastTrade struct {
		Price float64 `json:"price"`
	} `json:"last_trade"`
}

// massiveChainResp models the paginated chain snapshot response.
type massiveChainResp struct {
	Results   []massiveSnapshot `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - baseURL: API root; empty selects DefaultMassiveBaseURL
//   - secondary: optional fallback provider, may be nil
func NewMassiveDataProvider(apiKey, baseURL string, secondary Provider) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	if baseURL == "" {
		baseURL = DefaultMassiveBaseURL
	}

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL:       baseURL,
		rateLimitWait: untilNextMinute,
		secondary:     secondary,
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetBars retrieves OHLCV bars for the given symbol and time range.
//
// Parameters:
//   - underlying: ticker symbol
//   - fromDate, toDate: inclusive date range
//   - timespan: aggregation multiplier (e.g. 1)
//   - multiplier: aggregation unit (e.g. "day", "minute")
func (massiveDataProv *massiveDataProvider) GetBars(
	underlying string,
	fromDate, toDate time.Time,
	timespan int,
	multiplier string,
) ([]Bar, error) {

	logger.Debugf(
		"fetching bars: %s from=%s to=%s span=%d%s",
		underlying,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
		timespan,
		multiplier,
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?adjusted=true&sort=asc&limit=50000",
		massiveDataProv.BaseURL,
		url.PathEscape(underlying),
		timespan,
		multiplier,
		fromDate.Format("2006-01-02"),
		toDate.Format("2006-01-02"),
	)

	body, err := massiveDataProv.get(reqURL)
	if err != nil {
		if massiveDataProv.secondary != nil {
			logger.Warnf("massive bars failed (%v), delegating to secondary provider", err)
			return massiveDataProv.secondary.GetBars(underlying, fromDate, toDate, timespan, multiplier)
		}
		return nil, fmt.Errorf("massive bars %s: %w", underlying, err)
	}

	var resp struct {
		Results []struct {
			Open      float64 `json:"o"`
			Close     float64 `json:"c"`
			High      float64 `json:"h"`
			Low       float64 `json:"l"`
			Volume    float64 `json:"v"`
			Timestamp int64   `json:"t"` // epoch millis
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing massive bars: %w", err)
	}

	logger.Tracef("bars received: %d records", len(resp.Results))

	out := make([]Bar, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Bar{
			Date:  time.UnixMilli(r.Timestamp).UTC(),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	return out, nil
}

// GetSpotPrice returns the last daily close on or before asOf.
func (massiveDataProv *massiveDataProvider) GetSpotPrice(underlying string, asOf time.Time) (float64, error) {
	spot, err := spotFromHistory(func(from, to time.Time) ([]Bar, error) {
		return massiveDataProv.GetBars(underlying, from, to, 1, "day")
	}, asOf)
	if err != nil {
		return 0, fmt.Errorf("massive spot %s: %w", underlying, err)
	}
	logger.Debugf("spot %s as of %s: %.4f", underlying, asOf.Format("2006-01-02"), spot)
	return spot, nil
}

// GetOptionChain retrieves every listed contract of underlying from the chain
// snapshot endpoint. The observed price is the last trade, falling back to the
// quote midpoint and then the session close. Contracts with none of these, or
// with malformed fields, are skipped.
func (massiveDataProv *massiveDataProvider) GetOptionChain(underlying string, asOf time.Time) ([]surface.OptionQuote, error) {
	logger.Infof("fetching option chain for %s", underlying)

	reqURL := fmt.Sprintf("%s/v3/snapshot/options/%s?limit=250", massiveDataProv.BaseURL, url.PathEscape(underlying))

	var out []surface.OptionQuote
	for page := 1; reqURL != ""; page++ {
		body, err := massiveDataProv.get(reqURL)
		if err != nil {
			if massiveDataProv.secondary != nil {
				logger.Warnf("massive chain failed (%v), delegating to secondary provider", err)
				return massiveDataProv.secondary.GetOptionChain(underlying, asOf)
			}
			return nil, fmt.Errorf("massive chain %s: %w", underlying, err)
		}

		var resp massiveChainResp
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode chain page %d: %w", page, err)
		}
		logger.Tracef("chain page %d: %d contracts", page, len(resp.Results))

		for _, snap := range resp.Results {
			q, ok := snap.toQuote()
			if !ok {
				logger.Tracef("skipping contract %q", snap.Details.Ticker)
				continue
			}
			out = append(out, q)
		}
		reqURL = resp.NextURL
	}

	logger.Infof("received %d option quotes for %s", len(out), underlying)
	return out, nil
}

func (snap massiveSnapshot) toQuote() (surface.OptionQuote, bool) {
	kind, err := pricing.ParseKind(snap.Details.ContractType)
	if err != nil {
		return surface.OptionQuote{}, false
	}
	expiry, err := time.Parse("2006-01-02", snap.Details.ExpirationDate)
	if err != nil {
		return surface.OptionQuote{}, false
	}

	price := snap.LastTrade.Price
	if price <= 0 {
		price = snap.LastQuote.Midpoint
	}
	if price <= 0 && snap.LastQuote.Bid > 0 && snap.LastQuote.Ask > 0 {
		price = (snap.LastQuote.Bid + snap.LastQuote.Ask) / 2
	}
	if price <= 0 {
		price = snap.Day.Close
	}
	if price <= 0 || snap.Details.StrikePrice <= 0 {
		return surface.OptionQuote{}, false
	}

	return surface.OptionQuote{
		ContractSymbol: snap.Details.Ticker,
		Strike:         snap.Details.StrikePrice,
		Expiration:     expiry,
		LastPrice:      price,
		Kind:           kind,
	}, true
}

// get performs an authenticated GET and returns the body of a 200 response.
func (massiveDataProv *massiveDataProvider) get(reqURL string) ([]byte, error) {
	logger.Debugf("massive request URL: %s", reqURL)

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := massiveDataProv.processGetRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries on HTTP 429 after rateLimitWait, at most maxRateLimitRetries times
//   - Returns immediately on success (<400)
//   - Returns an error carrying the API message for other status codes
func (massiveDataProv *massiveDataProvider) processGetRequest(
	req *http.Request,
) (*http.Response, error) {

	for attempt := 0; ; attempt++ {
		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			resp.Body.Close()
			wait := massiveDataProv.rateLimitWait()
			logger.Infof("rate limit hit, sleeping for %s", wait)
			time.Sleep(wait)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		var dbg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(body, &dbg)

		logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
		return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
	}
}

func untilNextMinute() time.Duration {
	now := time.Now()
	return time.Until(now.Truncate(time.Minute).Add(time.Minute))
}
