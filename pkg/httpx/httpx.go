// Package httpx provides the instrumented HTTP plumbing shared by the ATLAS
// services: otelhttp-wrapped servers and clients, JSON envelope helpers,
// and the common health endpoint.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/atlasops/atlas/pkg/errors"
)

// NewServer wraps the handler with otelhttp so every route gets a SERVER
// span, and applies sane timeouts.
func NewServer(addr string, handler http.Handler, serviceName string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// NewClient returns an HTTP client whose transport injects trace context and
// records CLIENT spans for outgoing requests.
func NewClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ErrorBody is the JSON error envelope returned by all agent REST surfaces.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the wire-level error type and human message.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteJSON serializes v into the response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps an error to the JSON error envelope and appropriate
// HTTP status. AgentError codes drive the status; anything else is a 500.
func WriteError(w http.ResponseWriter, err error) {
	ae := errors.AsAgentError(err)
	WriteJSON(w, ae.StatusCode, ErrorBody{Error: ErrorDetail{
		Type:    ae.WireType(),
		Message: ae.Message,
	}})
}

// ReadJSON decodes the request body into v. Returns CodeInvalidInput on
// malformed payloads.
func ReadJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New(errors.CodeInvalidInput, "invalid request body", err)
	}
	return nil
}

// HealthHandler returns a GET handler that reports service health. The
// payload function, if set, contributes extra fields to the body.
func HealthHandler(serviceName string, payload func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"status":  "healthy",
			"service": serviceName,
		}
		if payload != nil {
			for k, v := range payload() {
				body[k] = v
			}
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

// PostJSON sends a JSON POST with trace propagation and decodes the reply
// into out. Non-2xx responses are decoded as error envelopes and returned
// as typed AgentErrors so callers can inspect the wire error type.
func PostJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.New(errors.CodeTimeout, "request deadline exceeded", err)
		}
		return errors.New(errors.CodeUnavailable, fmt.Sprintf("request to %s failed", url), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to read response", err)
	}

	if resp.StatusCode >= 400 {
		var eb ErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Type != "" {
			return errors.New(errors.CodeForWireType(eb.Error.Type), eb.Error.Message, nil).
				WithContext("url", url).
				WithContext("status", resp.StatusCode)
		}
		return errors.New(errors.CodeInternal, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url), nil)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.New(errors.CodeInternal, "failed to decode response", err)
		}
	}
	return nil
}

// GetJSON sends a GET with trace propagation and decodes the reply into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to build request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.New(errors.CodeUnavailable, fmt.Sprintf("request to %s failed", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return errors.New(errors.CodeUnavailable, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.New(errors.CodeInternal, "failed to decode response", err)
		}
	}
	return nil
}
