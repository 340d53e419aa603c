// mcp-server serves the MCP tool server over streamable HTTP at /mcp, with
// a plain health endpoint next to it.
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

	"github.com/atlasops/atlas/internal/toolserver"
	"github.com/atlasops/atlas/pkg/config"
	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	serviceName = "atlas-tool-server"
	version     = "0.1.0"
	defaultAddr = ":8083"
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

	svc := toolserver.New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpx.HealthHandler(serviceName, func() map[string]any {
		return map[string]any{
			"tools":            svc.ToolNames(),
			"protocol_version": svc.ProtocolVersion(),
		}
	}))
	mux.Handle("/mcp", svc.HTTPHandler())

	srv := httpx.NewServer(*addr, mux, serviceName)
	go func() {
		logger.Info("mcp tool server listening", "addr", *addr, "tools", svc.ToolNames())
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
