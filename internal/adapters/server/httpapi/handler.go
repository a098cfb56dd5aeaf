// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/connboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the board service.
func NewHandler(board common.BoardService) *Handler {
	return &Handler{board: board}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch {
	case path == "opportunities":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListOpportunities(w, r)
		return
	case path == "sessions":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleStartSession(w, r)
		return
	}

	sessionID, action, ok := resolveSessionRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetSession(w, r, sessionID)
		case http.MethodDelete:
			h.handleCloseSession(w, r, sessionID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case "view":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleView(w, r, sessionID)
	case "commands":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleCommand(w, r, sessionID)
	}
}

// handleListOpportunities serves GET `/opportunities`.
func (h *Handler) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	var req common.ListOpportunitiesRequest
	if raw := strings.TrimSpace(r.URL.Query().Get("connection_type_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "connection_type_id must be an integer",
			})
			return
		}
		req.ConnectionTypeID = id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "active must be a boolean",
			})
			return
		}
		req.ActiveOnly = active
	}
	opportunities, err := h.board.ListOpportunities(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opportunities,
	})
}

// handleStartSession serves POST `/sessions`.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req common.StartSessionRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	started, err := h.board.StartSession(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Location", "sessions/"+started.ID)
	writeJSON(w, http.StatusCreated, started)
}

// handleGetSession serves GET `/sessions/{id}`.
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := h.board.GetSession(r.Context(), sessionID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleCloseSession serves DELETE `/sessions/{id}`.
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.board.CloseSession(r.Context(), sessionID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleView serves GET `/sessions/{id}/view`.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, sessionID string) {
	view, err := h.board.View(r.Context(), sessionID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCommand serves POST `/sessions/{id}/commands`.
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request, sessionID string) {
	raw, err := readRawJSONBody(w, r)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.board.ApplyCommand(r.Context(), sessionID, raw)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveSessionRoute parses `sessions/{id}` and `sessions/{id}/{action}`.
func resolveSessionRoute(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, "sessions/")
	if !ok {
		return "", "", false
	}
	id, action, _ := strings.Cut(rest, "/")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", false
	}
	switch action {
	case "", "view", "commands":
		return id, action, true
	default:
		return "", "", false
	}
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
			Hint:    "Commands are JSON objects of the form {\"type\": \"<command>\", ...}.",
		})
	case errors.Is(err, common.ErrPreconditionFailed):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "precondition_failed",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// readRawJSONBody reads one bounded body and checks it is well-formed JSON.
func readRawJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("read request body: malformed json: %w", common.ErrInvalidRequest)
	}
	return json.RawMessage(body), nil
}
