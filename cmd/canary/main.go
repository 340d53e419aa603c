// canary drives steady synthetic traffic against the agents: it waits for
// them to come up, runs the scenario suite once, then loops weighted fault
// profiles through the planner. Fault weights reload from the config and
// profile files without a restart.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atlasops/atlas/internal/canary"
	"github.com/atlasops/atlas/pkg/config"
	"github.com/atlasops/atlas/pkg/telemetry"
)

const (
	serviceName = "canary"
	version     = "0.1.0"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initial, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.ConfigureSlog(os.Stdout, initial.Log.Level, initial.Log.Format)

	var watchPaths []string
	if *configPath != "" {
		watchPaths = append(watchPaths, *configPath)
	}
	if initial.Canary.ProfileFile != "" {
		watchPaths = append(watchPaths, initial.Canary.ProfileFile)
	}
	watcher, err := config.NewWatcher(watchPaths, config.WithWatchLogger(logger))
	if err != nil {
		logger.Error("config watcher init failed", "error", err)
		os.Exit(1)
	}
	watcher.Start(ctx)
	defer watcher.Stop()
	cfg := watcher.Config()

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

	runner := canary.NewRunner(canary.Options{
		PlannerURL: cfg.Agents.PlannerURL,
		Interval:   time.Duration(cfg.Canary.IntervalSeconds) * time.Second,
		Weights:    resolveWeights(cfg, logger),
		Logger:     logger,
	})
	watcher.OnChange(func(updated *config.Config) {
		runner.SetWeights(resolveWeights(updated, logger))
	})

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	err = runner.WaitHealthy(waitCtx,
		cfg.Agents.WeatherURL,
		cfg.Agents.EventsURL,
		cfg.Agents.PlannerURL,
		cfg.Agents.AssistantURL,
	)
	cancel()
	if err != nil {
		logger.Error("agents never became healthy", "error", err)
		os.Exit(1)
	}

	suite := canary.NewSuite(cfg.Agents.WeatherURL, cfg.Agents.PlannerURL, cfg.Agents.AssistantURL)
	results := suite.RunAll(ctx)
	for _, result := range results {
		logger.Info("scenario finished",
			"scenario", result.Name,
			"success", result.Success,
			"duration_ms", result.Duration.Milliseconds(),
			"error", result.Error,
		)
	}
	validateTraces(ctx, cfg, results, logger)

	logger.Info("canary loop starting",
		"planner_url", cfg.Agents.PlannerURL,
		"interval_seconds", cfg.Canary.IntervalSeconds,
	)
	runner.Run(ctx)

	success, total := runner.Stats()
	logger.Info("canary stopped", "matched", success, "total", total)
}

// validateTraces checks that the multi-agent scenario's spans landed in
// OpenSearch with an intact hierarchy: one root, linked parents, and the
// shared conversation id across agents.
func validateTraces(ctx context.Context, cfg *config.Config, results []canary.ScenarioResult, logger *slog.Logger) {
	if cfg.OpenSearch.URL == "" {
		return
	}
	checker, err := canary.NewTraceChecker(cfg.OpenSearch.URL, cfg.OpenSearch.Username, cfg.OpenSearch.Password)
	if err != nil {
		logger.Warn("trace checker unavailable", "error", err)
		return
	}

	for _, result := range results {
		if result.Name != canary.ScenarioMultiAgent || !result.Success || result.ConversationID == "" {
			continue
		}
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		report, err := checker.WaitForConversation(waitCtx, result.ConversationID, 5*time.Second)
		cancel()
		if err != nil {
			logger.Warn("trace validation inconclusive",
				"scenario", result.Name,
				"conversation_id", result.ConversationID,
				"error", err,
			)
			continue
		}
		if report.Valid() {
			logger.Info("trace hierarchy validated",
				"trace_id", report.TraceID,
				"span_count", report.SpanCount,
				"agent_ids", report.AgentIDs,
			)
		} else {
			logger.Error("trace hierarchy invalid",
				"trace_id", report.TraceID,
				"span_count", report.SpanCount,
				"problems", report.Problems,
			)
		}
	}
}

// resolveWeights prefers the dedicated profile file, then the weights from
// the main config, then the stock mix.
func resolveWeights(cfg *config.Config, logger *slog.Logger) map[string]float64 {
	if cfg.Canary.ProfileFile != "" {
		weights, err := loadProfileFile(cfg.Canary.ProfileFile)
		if err != nil {
			logger.Warn("profile file unreadable, falling back", "path", cfg.Canary.ProfileFile, "error", err)
		} else if len(weights) > 0 {
			return weights
		}
	}
	if len(cfg.Canary.Weights) > 0 {
		return cfg.Canary.Weights
	}
	return canary.DefaultWeights()
}

func loadProfileFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var profile struct {
		Weights map[string]float64 `yaml:"weights"`
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return profile.Weights, nil
}
