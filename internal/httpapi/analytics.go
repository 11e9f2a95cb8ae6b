package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"qms/walkin-queue/internal/analytics"
	"qms/walkin-queue/internal/calendar"
	"qms/walkin-queue/internal/store"
)

const maxReportDays = 366

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/api/analytics/")
	agg := h.svc.Analytics()

	switch {
	case len(parts) == 1 && parts[0] == "global":
		stats, err := agg.GlobalStats(r.Context())
		h.respond(w, r, stats, err)
	case len(parts) == 1 && parts[0] == "daily":
		h.handleLastDays(w, r, agg, "")
	case len(parts) == 1 && parts[0] == "custom":
		h.handleCustomRange(w, r, agg, "")
	case len(parts) >= 2 && parts[0] == "queues":
		queueID := parts[1]
		if !isValidUUID(queueID) {
			writeError(w, requestIDFromRequest(r), http.StatusBadRequest, "invalid_request", "queue_id must be a UUID", "queue_id")
			return
		}
		h.handleQueueAnalytics(w, r, agg, queueID, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleQueueAnalytics(w http.ResponseWriter, r *http.Request, agg *analytics.Aggregator, queueID string, rest []string) {
	if len(rest) == 0 {
		stats, err := agg.QueueStats(r.Context(), queueID)
		h.respond(w, r, stats, err)
		return
	}
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[0] {
	case "daily":
		h.handleLastDays(w, r, agg, queueID)
	case "custom":
		h.handleCustomRange(w, r, agg, queueID)
	case "served-per-hour":
		date, ok := h.dateParam(w, r, agg.Location())
		if !ok {
			return
		}
		hours, err := agg.ServedPerHour(r.Context(), queueID, date)
		h.respond(w, r, hours, err)
	case "summary":
		date, ok := h.dateParam(w, r, agg.Location())
		if !ok {
			return
		}
		summary, err := agg.DaySummary(r.Context(), queueID, date)
		h.respond(w, r, summary, err)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleLastDays(w http.ResponseWriter, r *http.Request, agg *analytics.Aggregator, queueID string) {
	days := analytics.DefaultDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxReportDays {
			respondError(w, r, store.Invalid("days", "days must be an integer between 1 and 366"))
			return
		}
		days = parsed
	}
	buckets, err := agg.LastDays(r.Context(), days, queueID)
	h.respond(w, r, buckets, err)
}

func (h *Handler) handleCustomRange(w http.ResponseWriter, r *http.Request, agg *analytics.Aggregator, queueID string) {
	query := r.URL.Query()
	rawStart, rawEnd := strings.TrimSpace(query.Get("start")), strings.TrimSpace(query.Get("end"))
	if rawStart == "" || rawEnd == "" {
		respondError(w, r, store.Invalid("start", "start and end are required"))
		return
	}
	start, err := calendar.ParseDate(rawStart, agg.Location())
	if err != nil {
		respondError(w, r, store.Invalid("start", err.Error()))
		return
	}
	end, err := calendar.ParseDate(rawEnd, agg.Location())
	if err != nil {
		respondError(w, r, store.Invalid("end", err.Error()))
		return
	}
	if len(calendar.Days(start, end, agg.Location())) > maxReportDays {
		respondError(w, r, store.Invalid("end", "range must not exceed 366 days"))
		return
	}
	buckets, err := agg.Daily(r.Context(), start, end, queueID)
	h.respond(w, r, buckets, err)
}

// dateParam reads ?date=YYYY-MM-DD, defaulting to today.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return calendar.DayStart(h.svc.Now(), loc), true
	}
	date, err := calendar.ParseDate(raw, loc)
	if err != nil {
		respondError(w, r, store.Invalid("date", err.Error()))
		return time.Time{}, false
	}
	return date, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, payload interface{}, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
