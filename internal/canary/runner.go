// Package canary generates steady synthetic traffic against the ATLAS
// agents so dashboards always have data: weighted fault profiles on planner
// traffic, a scenario suite covering the interesting trace shapes, and
// OpenSearch-backed validation that the traces actually landed.
package canary

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/atlasops/atlas/pkg/fault"
	"github.com/atlasops/atlas/pkg/httpx"
	"github.com/atlasops/atlas/pkg/resilience"
)

var destinations = []string{
	"Paris", "London", "Tokyo", "Berlin", "New York", "Sydney", "Mumbai", "Seattle",
}

// Options configures the canary runner.
type Options struct {
	PlannerURL string
	Interval   time.Duration
	Weights    map[string]float64
	Logger     *slog.Logger
	Client     *http.Client
}

// Runner drives periodic planner invocations with weighted fault profiles.
type Runner struct {
	plannerURL string
	interval   time.Duration
	client     *http.Client
	logger     *slog.Logger

	mu       sync.Mutex
	selector *fault.Selector
	rng      *rand.Rand
	success  int64
	total    int64
}

// NewRunner builds a canary runner. Missing weights fall back to the stock
// traffic mix.
func NewRunner(opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Client == nil {
		opts.Client = httpx.NewClient(60 * time.Second)
	}
	weights := opts.Weights
	if len(weights) == 0 {
		weights = DefaultWeights()
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Runner{
		plannerURL: opts.PlannerURL,
		interval:   opts.Interval,
		client:     opts.Client,
		logger:     opts.Logger,
		selector:   buildSelector(weights, rng),
		rng:        rng,
	}
}

func buildSelector(weights map[string]float64, rng *rand.Rand) *fault.Selector {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	choices := make([]fault.Choice, 0, len(names))
	for _, name := range names {
		choices = append(choices, fault.Choice{Name: name, Weight: weights[name]})
	}
	return fault.NewSelector(choices, rng)
}

// SetWeights swaps the fault profile mix, used on config reload.
func (r *Runner) SetWeights(weights map[string]float64) {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selector = buildSelector(weights, r.rng)
	r.logger.Info("canary profile weights updated", "profiles", r.selector.Names())
}

// WaitHealthy blocks until every URL answers its health endpoint, retrying
// with backoff. Used at startup so the canary doesn't count deployment lag
// as failures.
func (r *Runner) WaitHealthy(ctx context.Context, urls ...string) error {
	retry := resilience.HealthProbePolicy()

	for _, url := range urls {
		url := url
		err := retry.Do(ctx, func() error {
			return httpx.GetJSON(ctx, r.client, url+"/health", nil)
		})
		if err != nil {
			return err
		}
		r.logger.Info("service healthy", "url", url)
	}
	return nil
}

// Run loops until the context is canceled, invoking the planner once per
// interval. The first invocation happens immediately.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce fires a single planner invocation under a freshly picked profile
// and reports whether the outcome matched the profile's expectation.
func (r *Runner) RunOnce(ctx context.Context) bool {
	profile, destination := r.pick()

	req := planRequest{Destination: destination}
	applyProfile(&req, profile)

	start := time.Now()
	var resp planResponse
	err := httpx.PostJSON(ctx, r.client, r.plannerURL+"/plan", req, &resp)
	elapsed := time.Since(start)

	ok := r.evaluate(profile, &resp, err)
	r.count(ok)

	if ok {
		r.logger.InfoContext(ctx, "canary plan",
			"profile", profile,
			"destination", destination,
			"partial", resp.Partial,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		r.logger.WarnContext(ctx, "canary plan outcome mismatched profile",
			"profile", profile,
			"destination", destination,
			"error", err,
			"partial", resp.Partial,
		)
	}
	return ok
}

// evaluate decides whether the plan outcome matches the injected profile.
// Profiles that break a branch expect a partial plan; everything else
// expects a complete one.
func (r *Runner) evaluate(profile string, resp *planResponse, err error) bool {
	if err != nil {
		// The planner degrades branch failures to partial responses, so a
		// transport-level error is always a miss.
		return false
	}
	if expectFailure(profile) {
		return resp.Partial && len(resp.Errors) > 0
	}
	if profile == ProfilePartialFailure {
		// Each branch fails with p=0.5, so complete and partial plans are
		// both legitimate outcomes.
		return true
	}
	return !resp.Partial
}

func (r *Runner) pick() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile := r.selector.Pick()
	destination := destinations[r.rng.Intn(len(destinations))]
	return profile, destination
}

func (r *Runner) count(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if ok {
		r.success++
	}
}

// Stats returns the matched and total invocation counts.
func (r *Runner) Stats() (success, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success, r.total
}
