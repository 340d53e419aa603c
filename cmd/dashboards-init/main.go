// dashboards-init is a one-shot job that bootstraps OpenSearch Dashboards:
// workspace, index patterns, data source, and the Prometheus connection.
// Safe to run on every deploy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlasops/atlas/internal/dashboards"
	"github.com/atlasops/atlas/pkg/config"
	"github.com/atlasops/atlas/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlog(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	client := dashboards.New(dashboards.Options{
		BaseURL:        cfg.Dashboards.BaseURL,
		Username:       cfg.Dashboards.Username,
		Password:       cfg.Dashboards.Password,
		PrometheusHost: cfg.Dashboards.PrometheusHost,
		PrometheusPort: cfg.Dashboards.PrometheusPort,
		OpenSearchURL:  cfg.OpenSearch.URL,
		Logger:         logger,
	})

	if err := client.Run(ctx); err != nil {
		logger.Error("dashboards bootstrap failed", "error", err)
		os.Exit(1)
	}
	logger.Info("dashboards bootstrap finished")
}
