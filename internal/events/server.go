package events

import (
	"log/slog"
	"net/http"

	"github.com/atlasops/atlas/pkg/errors"
	"github.com/atlasops/atlas/pkg/httpx"
)

// Handler exposes the agent over REST.
type Handler struct {
	agent  *Agent
	logger *slog.Logger
}

// NewHandler builds the HTTP handler for the events agent.
func NewHandler(agent *Agent, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{agent: agent, logger: logger}
}

// Routes registers the agent routes on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpx.HealthHandler(agentID, func() map[string]any {
		return map[string]any{"agent": agentName}
	}))
	mux.HandleFunc("POST /events", h.events)
	return mux
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EventsRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Destination == "" {
		httpx.WriteError(w, errors.New(errors.CodeInvalidInput, "destination is required", nil))
		return
	}

	resp, err := h.agent.GetEvents(ctx, req)
	if err != nil {
		ae := errors.AsAgentError(err)
		h.logger.ErrorContext(ctx, "events lookup failed",
			"destination", req.Destination,
			"error", ae.Message,
			"error_type", ae.WireType(),
		)
		httpx.WriteError(w, ae)
		return
	}

	h.logger.InfoContext(ctx, "events lookup complete",
		"destination", resp.Destination,
		"count", len(resp.Events),
	)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
