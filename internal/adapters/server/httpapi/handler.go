// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/initboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	boards common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(boards common.BoardService) *Handler {
	return &Handler{boards: boards}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	if path == "initiatives" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListInitiatives(w, r)
		return
	}

	initiativeID, rest, ok := resolveInitiativeRoute(path)
	if !ok {
		writeNotFound(w)
		return
	}
	switch {
	case rest == "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r, initiativeID)
		case http.MethodPut:
			h.handleBulkUpdateTasks(w, r, initiativeID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut)
		}
	case rest == "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoard(w, r, initiativeID)
	case rest == "members":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListMembers(w, r, initiativeID)
	case rest == "access":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleAccess(w, r, initiativeID)
	default:
		taskID, ok := resolveMoveTaskID(rest)
		if !ok {
			writeNotFound(w)
			return
		}
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveTask(w, r, initiativeID, taskID)
	}
}

// handleListInitiatives serves GET `/initiatives`.
func (h *Handler) handleListInitiatives(w http.ResponseWriter, r *http.Request) {
	initiatives, err := h.boards.ListInitiatives(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"initiatives": initiatives})
}

// handleListTasks serves GET `/initiatives/{id}/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request, initiativeID string) {
	tasks, err := h.boards.ListTasks(r.Context(), initiativeID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, common.BulkUpdateRequest{Tasks: tasks})
}

// handleBulkUpdateTasks serves PUT `/initiatives/{id}/tasks`.
func (h *Handler) handleBulkUpdateTasks(w http.ResponseWriter, r *http.Request, initiativeID string) {
	var req common.BulkUpdateRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.Tasks == nil {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "tasks is required",
			Hint:    "Send the full ordered task list of the initiative.",
		})
		return
	}
	if err := h.boards.BulkUpdateTasks(r.Context(), initiativeID, req.Tasks); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "tasks": len(req.Tasks)})
}

// handleBoard serves GET `/initiatives/{id}/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request, initiativeID string) {
	b, err := h.boards.Board(r.Context(), initiativeID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleListMembers serves GET `/initiatives/{id}/members`.
func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request, initiativeID string) {
	members, err := h.boards.ListTeamMembers(r.Context(), initiativeID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// handleAccess serves GET `/initiatives/{id}/access?user_id=`.
func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request, initiativeID string) {
	access, err := h.boards.Access(r.Context(), initiativeID, r.URL.Query().Get("user_id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

// handleMoveTask serves POST `/initiatives/{id}/tasks/{taskID}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request, initiativeID, taskID string) {
	var req common.MoveTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.InitiativeID = initiativeID
	req.TaskID = taskID
	b, err := h.boards.MoveTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// resolveInitiativeRoute parses `initiatives/{id}/{rest...}`.
func resolveInitiativeRoute(path string) (string, string, bool) {
	const prefix = "initiatives/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	id, rest, ok := strings.Cut(strings.TrimPrefix(path, prefix), "/")
	id = strings.TrimSpace(id)
	if !ok || id == "" || rest == "" {
		return "", "", false
	}
	return id, rest, true
}

// resolveMoveTaskID parses `tasks/{taskID}/move` and returns `{taskID}`.
func resolveMoveTaskID(rest string) (string, bool) {
	const (
		prefix = "tasks/"
		suffix = "/move"
	)
	if !strings.HasPrefix(rest, prefix) || !strings.HasSuffix(rest, suffix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(rest, prefix), suffix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
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
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Reload the board and retry with the current task list.",
		})
	case errors.Is(err, common.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeNotFound writes the structured unknown-endpoint response.
func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
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
