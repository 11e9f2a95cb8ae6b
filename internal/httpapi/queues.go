package httpapi

import (
	"net/http"
	"strconv"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/service"
)

type createQueueRequest struct {
	Name              string `json:"name" validate:"required,max=120"`
	AvgServiceMinutes int    `json:"avg_service_minutes" validate:"gte=0,lte=1440"`
	CustomMessage     string `json:"custom_message" validate:"max=500"`
}

type queueSettingsRequest struct {
	IsOpen            *bool   `json:"is_open"`
	CustomMessage     *string `json:"custom_message" validate:"omitempty,max=500"`
	AvgServiceMinutes *int    `json:"avg_service_minutes" validate:"omitempty,lte=1440"`
}

func (h *Handler) handleQueues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		queues, err := h.svc.ListQueues(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		if queues == nil {
			queues = []models.Queue{}
		}
		writeJSON(w, http.StatusOK, queues)
	case http.MethodPost:
		var req createQueueRequest
		if !h.decode(w, r, &req) {
			return
		}
		queue, err := h.svc.CreateQueue(r.Context(), service.CreateQueueInput{
			Name:              req.Name,
			AvgServiceMinutes: req.AvgServiceMinutes,
			CustomMessage:     req.CustomMessage,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, queue)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleQueueActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/queues/")
	if len(parts) == 0 || len(parts) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	queueID := parts[0]
	if !isValidUUID(queueID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "queue_id must be a UUID", "queue_id")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGetQueue(w, r, queueID)
		case http.MethodDelete:
			h.handleDeleteQueue(w, r, queueID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	action := parts[1]
	method := map[string]string{
		"active":   http.MethodGet,
		"tickets":  http.MethodGet,
		"settings": http.MethodPatch,
		"toggle":   http.MethodPatch,
	}[action]
	if method == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "active":
		h.handleActiveTickets(w, r, queueID)
	case "tickets":
		h.handleDayTickets(w, r, queueID)
	case "settings":
		h.handleQueueSettings(w, r, queueID)
	case "toggle":
		h.handleToggleQueue(w, r, queueID)
	}
}

func (h *Handler) handleGetQueue(w http.ResponseWriter, r *http.Request, queueID string) {
	queue, err := h.svc.GetQueue(r.Context(), queueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *Handler) handleDeleteQueue(w http.ResponseWriter, r *http.Request, queueID string) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "force must be a boolean", "force")
			return
		}
		force = parsed
	}
	if err := h.svc.DeleteQueue(r.Context(), queueID, force); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActiveTickets(w http.ResponseWriter, r *http.Request, queueID string) {
	tickets, err := h.svc.ActiveTickets(r.Context(), queueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activeTickets(tickets))
}

func (h *Handler) handleDayTickets(w http.ResponseWriter, r *http.Request, queueID string) {
	tickets, err := h.svc.DayTickets(r.Context(), queueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleQueueSettings(w http.ResponseWriter, r *http.Request, queueID string) {
	var req queueSettingsRequest
	if !h.decode(w, r, &req) {
		return
	}
	queue, err := h.svc.UpdateSettings(r.Context(), queueID, service.QueueSettings{
		IsOpen:            req.IsOpen,
		CustomMessage:     req.CustomMessage,
		AvgServiceMinutes: req.AvgServiceMinutes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *Handler) handleToggleQueue(w http.ResponseWriter, r *http.Request, queueID string) {
	queue, err := h.svc.ToggleQueue(r.Context(), queueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}
