package httpapi

import (
	"math"
	"net/http"
	"time"

	"qms/walkin-queue/internal/eta"
	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/service"
	"qms/walkin-queue/internal/store"
)

type createTicketRequest struct {
	QueueID      string `json:"queue_id" validate:"required,uuid"`
	Name         string `json:"name" validate:"required,max=120"`
	PartySize    int    `json:"party_size"`
	ContactType  string `json:"contact_type" validate:"max=32"`
	ContactValue string `json:"contact_value" validate:"max=255"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type serviceStatsResponse struct {
	RecentAvgSec int `json:"recent_avg_sec"`
	DailyAvgSec  int `json:"daily_avg_sec"`
}

type publicTicketResponse struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	QueueID           string               `json:"queue_id"`
	QueueName         string               `json:"queue_name"`
	Status            models.Status        `json:"status"`
	CreatedAt         time.Time            `json:"created_at"`
	Position          *int                 `json:"position"`
	TotalWaiting      int                  `json:"total_waiting"`
	AheadOfYou        []eta.AheadEntry     `json:"ahead_of_you"`
	AvgServiceMinutes int                  `json:"avg_service_minutes"`
	ETASeconds        *int                 `json:"eta_seconds"`
	ServiceStats      serviceStatsResponse `json:"service_stats"`
	CustomMessage     string               `json:"custom_message"`
}

type leftTicketResponse struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Status  models.Status `json:"status"`
	Message string        `json:"message"`
	LeftAt  *time.Time    `json:"left_at"`
}

type activeTicketResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	PartySize int           `json:"party_size"`
	Status    models.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTicketRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.JoinQueue(r.Context(), service.JoinInput{
		QueueID:      req.QueueID,
		Name:         req.Name,
		PartySize:    req.PartySize,
		ContactType:  req.ContactType,
		ContactValue: req.ContactValue,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleTicketActions(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/tickets/")
	switch {
	case len(parts) == 2 && parts[0] == "public":
		h.withTicketID(w, r, parts[1], http.MethodGet, h.handlePublicTicket)
	case len(parts) == 2 && parts[1] == "leave":
		h.withTicketID(w, r, parts[0], http.MethodPatch, h.handleLeave)
	case len(parts) == 2 && parts[1] == "status":
		h.withTicketID(w, r, parts[0], http.MethodPatch, h.handleUpdateStatus)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) withTicketID(w http.ResponseWriter, r *http.Request, ticketID, method string, next func(http.ResponseWriter, *http.Request, string)) {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID", "ticket_id")
		return
	}
	next(w, r, ticketID)
}

func (h *Handler) handlePublicTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	status, err := h.svc.TicketStatus(r.Context(), ticketID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ticket := status.Ticket
	if ticket.Status == models.StatusLeft {
		writeJSON(w, http.StatusOK, newLeftTicketResponse(ticket))
		return
	}

	writeJSON(w, http.StatusOK, publicTicketResponse{
		ID:                ticket.ID,
		Name:              ticket.Name,
		QueueID:           ticket.QueueID,
		QueueName:         status.Queue.Name,
		Status:            ticket.Status,
		CreatedAt:         ticket.CreatedAt,
		Position:          status.Position,
		TotalWaiting:      status.TotalActive,
		AheadOfYou:        status.AheadOfYou,
		AvgServiceMinutes: status.Queue.AvgServiceMinutes(),
		ETASeconds:        status.ETASeconds,
		ServiceStats: serviceStatsResponse{
			RecentAvgSec: int(math.Round(status.Stats.RecentAvgSeconds)),
			DailyAvgSec:  int(math.Round(status.Stats.DailyAvgSeconds)),
		},
		CustomMessage: status.Queue.CustomMessage,
	})
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request, ticketID string) {
	ticket, err := h.svc.Leave(r.Context(), ticketID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLeftTicketResponse(ticket))
}

func newLeftTicketResponse(ticket models.Ticket) leftTicketResponse {
	return leftTicketResponse{
		ID:      ticket.ID,
		Name:    ticket.Name,
		Status:  ticket.Status,
		Message: service.LeftMessage,
		LeftAt:  ticket.LeftAt,
	}
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	var req updateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		respondError(w, r, store.Invalid("status", err.Error()))
		return
	}

	ticket, err := h.svc.UpdateStatus(r.Context(), ticketID, status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func activeTickets(tickets []models.Ticket) []activeTicketResponse {
	out := make([]activeTicketResponse, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, activeTicketResponse{
			ID:        ticket.ID,
			Name:      ticket.Name,
			PartySize: ticket.PartySize,
			Status:    ticket.Status,
			CreatedAt: ticket.CreatedAt,
		})
	}
	return out
}
