// code-assistant serves the mock coding agent with its multi-tool chains.
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

	"github.com/atlasops/atlas/internal/assistant"
	"github.com/atlasops/atlas/pkg/config"
	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	serviceName = "code-assistant"
	version     = "0.1.0"
	defaultAddr = ":8084"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", defaultAddr, "HTTP listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlog(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
		AgentID:      "code-assistant",
		AgentName:    "CodeAssistant",
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

	agent, err := assistant.NewAgent()
	if err != nil {
		logger.Error("agent init failed", "error", err)
		os.Exit(1)
	}

	srv := httpx.NewServer(*addr, assistant.NewHandler(agent, logger).Routes(), serviceName)
	go func() {
		logger.Info("code assistant listening", "addr", *addr)
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
