package weather

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

// NewHandler builds the HTTP handler for the weather agent.
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
		names := make([]string, 0, 3)
		for _, def := range toolDefinitions() {
			names = append(names, def.Name)
		}
		return map[string]any{"agent": agentName, "tools": names}
	}))
	mux.HandleFunc("POST /invoke", h.invoke)
	return mux
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req InvokeRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Message == "" {
		httpx.WriteError(w, errors.New(errors.CodeInvalidInput, "message is required", nil))
		return
	}

	resp, err := h.agent.Invoke(ctx, req)
	if err != nil {
		ae := errors.AsAgentError(err)
		h.logger.ErrorContext(ctx, "invocation failed",
			"error", ae.Message,
			"error_type", ae.WireType(),
		)
		httpx.WriteError(w, ae)
		return
	}

	h.logger.InfoContext(ctx, "invocation complete", "conversation_id", resp.ConversationID)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
