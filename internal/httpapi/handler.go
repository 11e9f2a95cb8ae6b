package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"

	"qms/walkin-queue/internal/service"
	"qms/walkin-queue/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validate
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: newValidator(),
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/", h.handleTicketActions)
	mux.HandleFunc("/api/queues", h.handleQueues)
	mux.HandleFunc("/api/queues/", h.handleQueueActions)
	mux.HandleFunc("/api/analytics/", h.handleAnalytics)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// pathParts splits the path below prefix into its non-empty segments.
func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_json", "invalid JSON payload", "")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		respondError(w, r, validationError(err))
		return false
	}
	return true
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	field := ""
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		loggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, requestIDFromRequest(r), status, code, msg, field)
}

func mapError(err error) (int, string, string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "invalid_request", verr.Message
	case errors.Is(err, store.ErrQueueNotFound):
		return http.StatusNotFound, "queue_not_found", "queue not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "ticket status does not allow this change"
	case errors.Is(err, store.ErrQueueClosed):
		return http.StatusConflict, "queue_closed", "queue is closed"
	case errors.Is(err, store.ErrQueueHasTickets):
		return http.StatusConflict, "queue_has_tickets", "queue has tickets; delete with force=true"
	case errors.Is(err, store.ErrNotActive):
		return http.StatusConflict, "not_active", "ticket is no longer in the queue"
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable", "request timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message, field string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
			Field:   field,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}
