package planner

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/httpx"
)

// Handler exposes the planner over REST.
type Handler struct {
	planner *Planner
	history *HistoryStore
	logger  *slog.Logger
}

// NewHandler builds the HTTP handler for the travel planner.
func NewHandler(planner *Planner, history *HistoryStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{planner: planner, history: history, logger: logger}
}

// Routes registers the planner routes on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpx.HealthHandler(agentID, func() map[string]any {
		return map[string]any{
			"agent": agentName,
			"breakers": map[string]string{
				subAgentWeather: string(h.planner.weatherBreaker.State()),
				subAgentEvents:  string(h.planner.eventsBreaker.State()),
			},
		}
	}))
	mux.HandleFunc("POST /plan", h.plan)
	mux.HandleFunc("GET /plans", h.plans)
	return mux
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PlanRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Destination == "" {
		httpx.WriteError(w, errors.New(errors.CodeInvalidInput, "destination is required", nil))
		return
	}

	resp, err := h.planner.Plan(ctx, req)
	if err != nil {
		ae := errors.AsAgentError(err)
		h.logger.ErrorContext(ctx, "plan failed",
			"destination", req.Destination,
			"error", ae.Message,
			"error_type", ae.WireType(),
		)
		httpx.WriteError(w, ae)
		return
	}

	h.logger.InfoContext(ctx, "plan assembled",
		"plan_id", resp.PlanID,
		"destination", resp.Destination,
		"partial", resp.Partial,
		"errors", len(resp.Errors),
	)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httpx.WriteError(w, errors.New(errors.CodeUnavailable, "plan history is not configured", nil))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(w, errors.New(errors.CodeInvalidInput, "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		httpx.WriteError(w, errors.New(errors.CodeInternal, "failed to list plan history", err))
		return
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"plans": entries})
}
