package dashboards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeDashboards simulates the Dashboards REST API with enough state to
// exercise idempotency.
type fakeDashboards struct {
	mu            sync.Mutex
	workspaces    map[string]string // name -> id
	savedObjects  map[string]bool   // path -> exists
	noWorkspaces  bool
	requests      []string
	sawXSRFHeader bool
}

func (f *fakeDashboards) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": {"overall": {"state": "green"}}}`))
	})

	mux.HandleFunc("POST /api/workspaces/_list", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.noWorkspaces {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		var listed []map[string]string
		for name, id := range f.workspaces {
			listed = append(listed, map[string]string{"id": id, "name": name})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"workspaces": listed},
		})
	})

	mux.HandleFunc("POST /api/workspaces", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.noWorkspaces {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.workspaces == nil {
			f.workspaces = map[string]string{}
		}
		f.workspaces[body.Attributes.Name] = "ws-1"
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"id": "ws-1"},
		})
	})

	saved := func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.savedObjects == nil {
			f.savedObjects = map[string]bool{}
		}
		if f.savedObjects[r.URL.Path] {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error": "version conflict, document already exists"}`))
			return
		}
		f.savedObjects[r.URL.Path] = true
		w.Write([]byte(`{"id": "created"}`))
	}
	mux.HandleFunc("POST /api/saved_objects/", saved)
	mux.HandleFunc("POST /w/ws-1/api/saved_objects/", saved)
	mux.HandleFunc("POST /w/ws-1/api/opensearch-dashboards/settings", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"settings": {}}`))
	})
	mux.HandleFunc("POST /api/opensearch-dashboards/settings", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.Write([]byte(`{"settings": {}}`))
	})
	mux.HandleFunc("POST /w/ws-1/api/directquery/dataconnections", saved)
	mux.HandleFunc("POST /api/directquery/dataconnections", saved)

	return mux
}

func (f *fakeDashboards) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Header.Get("osd-xsrf") == "true" {
		f.sawXSRFHeader = true
	}
}

func newTestClient(t *testing.T, fake *fakeDashboards) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return New(Options{
		BaseURL:        srv.URL,
		Username:       "admin",
		Password:       "admin",
		PrometheusHost: "prometheus",
		PrometheusPort: 9090,
		OpenSearchURL:  "https://opensearch:9200",
	})
}

func TestRunCreatesEverything(t *testing.T) {
	fake := &fakeDashboards{}
	client := newTestClient(t, fake)

	if err := client.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fake.workspaces[workspaceName] != "ws-1" {
		t.Errorf("workspace not created: %+v", fake.workspaces)
	}
	if !fake.sawXSRFHeader {
		t.Error("writes must carry the osd-xsrf header")
	}

	wantObjects := []string{
		"/w/ws-1/api/saved_objects/index-pattern/logs-otel",
		"/w/ws-1/api/saved_objects/index-pattern/apm-spans",
		"/w/ws-1/api/saved_objects/index-pattern/apm-service-map",
		"/w/ws-1/api/saved_objects/data-source/atlas-opensearch",
		"/w/ws-1/api/directquery/dataconnections",
	}
	for _, path := range wantObjects {
		if !fake.savedObjects[path] {
			t.Errorf("missing saved object %s; have %v", path, fake.savedObjects)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fake := &fakeDashboards{}
	client := newTestClient(t, fake)

	if err := client.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := client.Run(context.Background()); err != nil {
		t.Fatalf("second run must succeed on conflicts: %v", err)
	}
	if len(fake.workspaces) != 1 {
		t.Errorf("expected exactly one workspace, got %+v", fake.workspaces)
	}
}

func TestRunFallsBackWithoutWorkspaceAPI(t *testing.T) {
	fake := &fakeDashboards{noWorkspaces: true}
	client := newTestClient(t, fake)

	if err := client.Run(context.Background()); err != nil {
		t.Fatalf("Run should fall back to the default space: %v", err)
	}
	// Objects land unscoped when there is no workspace.
	if !fake.savedObjects["/api/saved_objects/index-pattern/logs-otel"] {
		t.Errorf("expected unscoped index pattern, have %v", fake.savedObjects)
	}
}

func TestEnsureWorkspaceFindsExisting(t *testing.T) {
	fake := &fakeDashboards{workspaces: map[string]string{workspaceName: "ws-1"}}
	client := newTestClient(t, fake)

	id, err := client.EnsureWorkspace(context.Background())
	if err != nil {
		t.Fatalf("EnsureWorkspace failed: %v", err)
	}
	if id != "ws-1" {
		t.Errorf("expected existing workspace id, got %q", id)
	}
	for _, req := range fake.requests {
		if req == "POST /api/workspaces" {
			t.Error("existing workspace must not be re-created")
		}
	}
}

func TestDashboardsUnreachable(t *testing.T) {
	client := New(Options{BaseURL: "http://127.0.0.1:1"})
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	if err := client.Run(ctx); err == nil {
		t.Error("expected an error when Dashboards is unreachable")
	}
}

func TestAlreadyExists(t *testing.T) {
	if !alreadyExists([]byte(`{"error": "Saved object Already Exists"}`)) {
		t.Error("case-insensitive match expected")
	}
	if alreadyExists([]byte(`{"ok": true}`)) {
		t.Error("false positive")
	}
}

func TestSavedObjectsPathScoping(t *testing.T) {
	c := New(Options{BaseURL: "http://x"})
	if got := c.savedObjectsPath("", "/api/x"); got != "/api/x" {
		t.Errorf("unscoped path = %q", got)
	}
	if got := c.savedObjectsPath("ws-9", "/api/x"); got != "/w/ws-9/api/x" {
		t.Errorf("scoped path = %q", got)
	}
}
