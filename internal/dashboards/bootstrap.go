// Package dashboards bootstraps OpenSearch Dashboards for the ATLAS demo:
// an observability workspace, the index patterns the trace and log views
// need, and the Prometheus data connection. Every step is idempotent so the
// init job can run on every deploy.
package dashboards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/resilience"
)

const (
	workspaceName        = "ATLAS Observability"
	workspaceDescription = "Traces, logs, and metrics for the ATLAS agent demo"

	patternLogs       = "logs-otel-v1-*"
	patternSpans      = "otel-v1-apm-span-*"
	patternServiceMap = "otel-v1-apm-service-map"
)

// Options configures the bootstrap client.
type Options struct {
	BaseURL        string
	Username       string
	Password       string
	PrometheusHost string
	PrometheusPort int
	OpenSearchURL  string
	Logger         *slog.Logger
	Client         *http.Client
}

// Client talks to the OpenSearch Dashboards REST API.
type Client struct {
	baseURL        string
	username       string
	password       string
	prometheusHost string
	prometheusPort int
	opensearchURL  string
	http           *http.Client
	logger         *slog.Logger
}

// New builds a bootstrap client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Client == nil {
		opts.Client = httpx.NewClient(30 * time.Second)
	}
	return &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		username:       opts.Username,
		password:       opts.Password,
		prometheusHost: opts.PrometheusHost,
		prometheusPort: opts.PrometheusPort,
		opensearchURL:  opts.OpenSearchURL,
		http:           opts.Client,
		logger:         opts.Logger,
	}
}

// Run performs the full bootstrap sequence.
func (c *Client) Run(ctx context.Context) error {
	if err := c.WaitReady(ctx); err != nil {
		return fmt.Errorf("dashboards not ready: %w", err)
	}

	workspaceID, err := c.EnsureWorkspace(ctx)
	if err != nil {
		return err
	}

	patterns := []struct {
		id        string
		title     string
		timeField string
		isDefault bool
	}{
		{"logs-otel", patternLogs, "time", true},
		{"apm-spans", patternSpans, "startTime", false},
		{"apm-service-map", patternServiceMap, "", false},
	}
	for _, p := range patterns {
		if err := c.EnsureIndexPattern(ctx, workspaceID, p.id, p.title, p.timeField); err != nil {
			return err
		}
		if p.isDefault {
			if err := c.SetDefaultIndexPattern(ctx, workspaceID, p.id); err != nil {
				return err
			}
		}
	}

	if err := c.EnsureDataSource(ctx, workspaceID); err != nil {
		return err
	}
	if err := c.EnsurePrometheusConnection(ctx, workspaceID); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "dashboards bootstrap complete", "workspace", workspaceID)
	return nil
}

// WaitReady polls /api/status until Dashboards answers.
func (c *Client) WaitReady(ctx context.Context) error {
	retry := resilience.ClusterBootPolicy()

	return retry.Do(ctx, func() error {
		status, _, err := c.do(ctx, http.MethodGet, "/api/status", nil)
		if err != nil {
			return err
		}
		if status >= 400 {
			return fmt.Errorf("status endpoint returned %d", status)
		}
		return nil
	})
}

// EnsureWorkspace finds or creates the observability workspace. On clusters
// without the workspace plugin (404) it falls back to the default space and
// returns an empty id.
func (c *Client) EnsureWorkspace(ctx context.Context) (string, error) {
	listBody := map[string]any{"perPage": 100}
	status, body, err := c.do(ctx, http.MethodPost, "/api/workspaces/_list", listBody)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		c.logger.Info("workspace API unavailable, using the default space")
		return "", nil
	}
	if status < 400 {
		var listing struct {
			Result struct {
				Workspaces []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"workspaces"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &listing); err == nil {
			for _, ws := range listing.Result.Workspaces {
				if ws.Name == workspaceName {
					c.logger.Info("workspace already exists", "id", ws.ID)
					return ws.ID, nil
				}
			}
		}
	}

	createBody := map[string]any{
		"attributes": map[string]any{
			"name":        workspaceName,
			"description": workspaceDescription,
			"features":    []string{"use-case-observability"},
		},
	}
	status, body, err = c.do(ctx, http.MethodPost, "/api/workspaces", createBody)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status >= 400 && !alreadyExists(body) {
		return "", fmt.Errorf("workspace create returned %d: %s", status, truncate(body))
	}

	var created struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode workspace response: %w", err)
	}
	c.logger.Info("workspace created", "id", created.Result.ID)
	return created.Result.ID, nil
}

// EnsureIndexPattern creates a saved index pattern, treating conflicts as
// success.
func (c *Client) EnsureIndexPattern(ctx context.Context, workspaceID, id, title, timeField string) error {
	attributes := map[string]any{"title": title}
	if timeField != "" {
		attributes["timeFieldName"] = timeField
	}
	path := c.savedObjectsPath(workspaceID, "/api/saved_objects/index-pattern/"+id)

	status, body, err := c.do(ctx, http.MethodPost, path, map[string]any{"attributes": attributes})
	if err != nil {
		return err
	}
	if status == http.StatusConflict || alreadyExists(body) {
		c.logger.Info("index pattern already exists", "title", title)
		return nil
	}
	if status >= 400 {
		return fmt.Errorf("index pattern %s returned %d: %s", title, status, truncate(body))
	}
	c.logger.Info("index pattern created", "title", title)
	return nil
}

// SetDefaultIndexPattern marks the pattern as the space default.
func (c *Client) SetDefaultIndexPattern(ctx context.Context, workspaceID, id string) error {
	path := c.savedObjectsPath(workspaceID, "/api/opensearch-dashboards/settings")
	status, body, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"changes": map[string]any{"defaultIndex": id},
	})
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("default index update returned %d: %s", status, truncate(body))
	}
	return nil
}

// EnsureDataSource registers the local OpenSearch cluster as a data source.
func (c *Client) EnsureDataSource(ctx context.Context, workspaceID string) error {
	path := c.savedObjectsPath(workspaceID, "/api/saved_objects/data-source/atlas-opensearch")
	status, body, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"attributes": map[string]any{
			"title":    "ATLAS OpenSearch",
			"endpoint": c.opensearchURL,
			"auth": map[string]any{
				"type": "username_password",
				"credentials": map[string]any{
					"username": c.username,
					"password": c.password,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	if status == http.StatusConflict || alreadyExists(body) {
		c.logger.Info("data source already exists")
		return nil
	}
	if status == http.StatusNotFound {
		c.logger.Info("data source API unavailable, skipping")
		return nil
	}
	if status >= 400 {
		return fmt.Errorf("data source create returned %d: %s", status, truncate(body))
	}
	c.logger.Info("data source created")
	return nil
}

// EnsurePrometheusConnection registers Prometheus as a direct query
// connection for the metrics views.
func (c *Client) EnsurePrometheusConnection(ctx context.Context, workspaceID string) error {
	path := c.savedObjectsPath(workspaceID, "/api/directquery/dataconnections")
	status, body, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"name":      "prometheus",
		"connector": "prometheus",
		"properties": map[string]any{
			"prometheus.uri": fmt.Sprintf("http://%s:%d", c.prometheusHost, c.prometheusPort),
		},
	})
	if err != nil {
		return err
	}
	if status == http.StatusConflict || alreadyExists(body) {
		c.logger.Info("prometheus connection already exists")
		return nil
	}
	if status == http.StatusNotFound {
		c.logger.Info("direct query API unavailable, skipping prometheus connection")
		return nil
	}
	if status >= 400 {
		return fmt.Errorf("prometheus connection returned %d: %s", status, truncate(body))
	}
	c.logger.Info("prometheus connection created")
	return nil
}

// savedObjectsPath scopes a path to the workspace when one exists.
func (c *Client) savedObjectsPath(workspaceID, path string) string {
	if workspaceID == "" {
		return path
	}
	return "/w/" + workspaceID + path
}

// do issues one request with basic auth and the osd-xsrf header Dashboards
// requires on writes.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("osd-xsrf", "true")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func alreadyExists(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("already exists"))
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
