package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/data"
	"github.com/contactkeval/iv-surface/internal/iv"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/metrics"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// app ties the configured provider to the evaluator for both run modes.
type app struct {
	cfg       *config.Config
	prov      data.Provider
	collector *metrics.Collector
	now       func() time.Time
}

// newProvider chooses the market-data source. A csv data_dir, when set, backs
// the Massive provider as its secondary.
func newProvider(cfg *config.Config) (data.Provider, error) {
	switch cfg.ProviderName() {
	case config.ProviderMassive:
		var secondary data.Provider
		if cfg.Provider.DataDir != "" {
			secondary = data.NewLocalCSVDataProvider(cfg.Provider.DataDir, nil)
		}
		return data.NewMassiveDataProvider(cfg.Provider.APIKey, cfg.Provider.BaseURL, secondary), nil
	case config.ProviderCSV:
		return data.NewLocalCSVDataProvider(cfg.Provider.DataDir, nil), nil
	case config.ProviderSynthetic:
		return data.NewSyntheticProvider(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
}

// buildSurface fetches spot and chain for underlying and solves the chain.
func (a *app) buildSurface(ctx context.Context, underlying string) (*surface.Table, error) {
	asOf := a.now().UTC()

	spot, err := a.prov.GetSpotPrice(underlying, asOf)
	if err != nil {
		return nil, fmt.Errorf("spot %s: %w", underlying, err)
	}
	quotes, err := a.prov.GetOptionChain(underlying, asOf)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", underlying, err)
	}
	logger.Infof("%s spot %.2f, %d quotes", underlying, spot, len(quotes))

	opts, err := a.cfg.EvaluatorOptions(spot)
	if err != nil {
		return nil, err
	}
	ev, err := surface.NewEvaluator(opts, a.collector)
	if err != nil {
		return nil, err
	}

	table, err := ev.Evaluate(ctx, quotes, a.cfg.MarketContext(spot), asOf)
	if err != nil {
		return nil, err
	}
	table.Underlying = strings.ToUpper(underlying)
	return table, nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /surface", a.handleSurface)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", a.collector.Handler())
	return a.collector.InstrumentHandler(mux)
}

func (a *app) handleSurface(w http.ResponseWriter, r *http.Request) {
	underlying := r.URL.Query().Get("underlying")
	if underlying == "" {
		underlying = a.cfg.Underlying
	}
	logger.Infof("received /surface request for %s", underlying)

	table, err := a.buildSurface(r.Context(), underlying)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, iv.ErrDomain) {
			status = http.StatusUnprocessableEntity
		}
		logger.Warnf("/surface %s: %v", underlying, err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(table)
}
