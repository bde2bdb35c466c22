package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/metrics"
	"github.com/contactkeval/iv-surface/internal/report"
	"github.com/contactkeval/iv-surface/internal/surface"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (defaults apply when empty)")
	rest := flag.Bool("rest", false, "run as REST server (serve surfaces on demand)")
	addr := flag.String("addr", "", "REST server listen address, overrides [server].addr")
	verbosity := flag.Int("v", -1, "verbosity 0=error .. 4=trace, overrides log_level")
	axisFlag := flag.String("axis", "strike", "second surface axis in the CSV report: strike or moneyness")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}
	if *rest {
		cfg.Server.Enabled = true
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	if *verbosity >= 0 {
		logger.SetVerbosity(*verbosity)
	}

	axis, err := surface.ParseAxis(*axisFlag)
	if err != nil {
		log.Fatalf("invalid -axis: %v", err)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	prov, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}
	logger.Infof("%s provider enabled", cfg.ProviderName())

	a := &app{cfg: cfg, prov: prov, collector: collector, now: time.Now}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Infof("starting REST server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
		return
	}

	start := time.Now()
	table, err := a.buildSurface(ctx, cfg.Underlying)
	if err != nil {
		log.Fatalf("surface failed: %v", err)
	}

	// write outputs to cfg.OutputDir
	if err := report.WriteJSON(table, cfg.OutputDir); err != nil {
		logger.Warnf("could not write %s: %v", report.JSONFile, err)
	}
	if err := report.WriteCSV(table, axis, cfg.OutputDir); err != nil {
		logger.Warnf("could not write %s: %v", report.CSVFile, err)
	}

	st := table.Stats
	logger.Infof("finished in %v: %d quotes, %d solved, %d filtered, %d unsolvable, %d rejected, wrote %s",
		time.Since(start), st.Total, st.Solved, st.Filtered,
		st.NotBracketed+st.NoConvergence+st.Degenerate, st.Rejected, cfg.OutputDir)
}
