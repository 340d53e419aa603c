// Package config loads ATLAS service configuration from defaults, an
// optional YAML file, and ATLAS_-prefixed environment variables, in that
// order of precedence.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
	Agents     AgentsConfig     `koanf:"agents"`
	Canary     CanaryConfig     `koanf:"canary"`
	Dashboards DashboardsConfig `koanf:"dashboards"`
	OpenSearch OpenSearchConfig `koanf:"opensearch"`
	Store      StoreConfig      `koanf:"store"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Insecure     bool   `koanf:"insecure"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// AgentsConfig holds the base URLs of the services that call each other.
type AgentsConfig struct {
	WeatherURL   string `koanf:"weather_url"`
	EventsURL    string `koanf:"events_url"`
	PlannerURL   string `koanf:"planner_url"`
	MCPURL       string `koanf:"mcp_url"`
	AssistantURL string `koanf:"assistant_url"`
}

type CanaryConfig struct {
	IntervalSeconds int                `koanf:"interval_seconds"`
	ProfileFile     string             `koanf:"profile_file"`
	Weights         map[string]float64 `koanf:"weights"`
}

type DashboardsConfig struct {
	BaseURL        string `koanf:"base_url"`
	Username       string `koanf:"username"`
	Password       string `koanf:"password"`
	PrometheusHost string `koanf:"prometheus_host"`
	PrometheusPort int    `koanf:"prometheus_port"`
}

// OpenSearchConfig is used by the canary to validate emitted traces.
type OpenSearchConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "otlp")
	k.Set("telemetry.otlp_endpoint", "localhost:4317")
	k.Set("telemetry.insecure", true)

	k.Set("server.addr", ":8080")

	k.Set("agents.weather_url", "http://localhost:8081")
	k.Set("agents.events_url", "http://localhost:8082")
	k.Set("agents.planner_url", "http://localhost:8080")
	k.Set("agents.mcp_url", "http://localhost:8083/mcp")
	k.Set("agents.assistant_url", "http://localhost:8084")

	k.Set("canary.interval_seconds", 30)

	k.Set("dashboards.base_url", "http://localhost:5601")
	k.Set("dashboards.username", "admin")
	k.Set("dashboards.password", "admin")
	k.Set("dashboards.prometheus_host", "prometheus")
	k.Set("dashboards.prometheus_port", 9090)

	k.Set("opensearch.url", "http://localhost:9200")
	k.Set("opensearch.username", "admin")
	k.Set("opensearch.password", "admin")

	k.Set("store.path", "atlas.db")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (ATLAS_AGENTS_WEATHER_URL -> agents.weather_url)
	if err := k.Load(env.Provider("ATLAS_", ".", envToKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envToKey maps ATLAS_SECTION_SOME_FIELD to section.some_field. Only the
// first underscore after the section name becomes a separator; the rest of
// the name keeps its underscores so multi-word keys survive.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "ATLAS_"))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}
