// travel-planner serves the orchestrator that fans out to the weather and
// events agents and keeps a SQLite history of assembled plans.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasops/atlas/internal/planner"
	"github.com/atlasops/atlas/pkg/config"
	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	serviceName = "travel-planner"
	version     = "0.1.0"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addrFlag := flag.String("addr", "", "HTTP listen address (defaults to server.addr)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	addr := *addrFlag
	if addr == "" {
		addr = cfg.Server.Addr
	}

	logger := telemetry.ConfigureSlog(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
		AgentID:      "travel-planner",
		AgentName:    "TravelPlannerAgent",
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	history, err := planner.OpenHistoryStore(cfg.Store.Path)
	if err != nil {
		logger.Error("plan history init failed", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer history.Close()

	p, err := planner.New(planner.Options{
		WeatherURL: cfg.Agents.WeatherURL,
		EventsURL:  cfg.Agents.EventsURL,
		History:    history,
	})
	if err != nil {
		logger.Error("planner init failed", "error", err)
		os.Exit(1)
	}

	srv := httpx.NewServer(addr, planner.NewHandler(p, history, logger).Routes(), serviceName)
	go func() {
		logger.Info("travel planner listening",
			"addr", addr,
			"weather_url", cfg.Agents.WeatherURL,
			"events_url", cfg.Agents.EventsURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
