package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qms/walkin-queue/internal/models"
	"qms/walkin-queue/internal/service"
	"qms/walkin-queue/internal/store"
	"qms/walkin-queue/internal/store/memory"
)

var testNow = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{t: t, now: testNow}
	clock := func() time.Time { return ts.now }
	ts.store = memory.Open(memory.Options{Now: clock})
	t.Cleanup(ts.store.Close)
	svc := service.New(ts.store, service.Options{Location: time.UTC, Now: clock})
	ts.handler = NewHandler(svc).Routes()
	return ts
}

func (ts *testServer) do(method, path string, payload interface{}) *httptest.ResponseRecorder {
	ts.t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			ts.t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	resp := httptest.NewRecorder()
	ts.handler.ServeHTTP(resp, req)
	return resp
}

func (ts *testServer) queue(minutes int) models.Queue {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/queues", map[string]interface{}{"name": "Front desk", "avg_service_minutes": minutes})
	if resp.Code != http.StatusCreated {
		ts.t.Fatalf("create queue: status %d body %s", resp.Code, resp.Body.String())
	}
	var queue models.Queue
	decode(ts.t, resp, &queue)
	return queue
}

func (ts *testServer) join(queueID, name string) joinResponse {
	ts.t.Helper()
	resp := ts.do(http.MethodPost, "/api/tickets", map[string]interface{}{"queue_id": queueID, "name": name})
	if resp.Code != http.StatusCreated {
		ts.t.Fatalf("join: status %d body %s", resp.Code, resp.Body.String())
	}
	var out joinResponse
	decode(ts.t, resp, &out)
	return out
}

type joinResponse struct {
	Ticket     models.Ticket `json:"ticket"`
	Position   *int          `json:"position"`
	ETASeconds *int          `json:"eta_seconds"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) responseError {
	t.Helper()
	var out errorResponse
	decode(t, resp, &out)
	return out.Error
}

func TestCreateTicketSuccess(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(6)

	wantETA := []int{0, 360, 720}
	for i, name := range []string{"A", "B", "C"} {
		out := ts.join(queue.ID, name)
		if out.Position == nil || *out.Position != i+1 {
			t.Fatalf("%s: expected position %d, got %v", name, i+1, out.Position)
		}
		if *out.ETASeconds != wantETA[i] {
			t.Fatalf("%s: expected eta %d, got %d", name, wantETA[i], *out.ETASeconds)
		}
		if out.Ticket.PartySize != 1 {
			t.Fatalf("expected default party size 1, got %d", out.Ticket.PartySize)
		}
		ts.now = ts.now.Add(time.Minute)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)

	cases := []struct {
		name    string
		payload map[string]interface{}
		field   string
	}{
		{"missing name", map[string]interface{}{"queue_id": queue.ID}, "name"},
		{"blank name", map[string]interface{}{"queue_id": queue.ID, "name": "   "}, "name"},
		{"bad queue id", map[string]interface{}{"queue_id": "nope", "name": "A"}, "queue_id"},
	}
	for _, tc := range cases {
		resp := ts.do(http.MethodPost, "/api/tickets", tc.payload)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, resp.Code)
		}
		if got := errorCode(t, resp); got.Code != "invalid_request" || got.Field != tc.field {
			t.Fatalf("%s: unexpected error %+v", tc.name, got)
		}
	}

	resp := ts.do(http.MethodPost, "/api/tickets", map[string]interface{}{"queue_id": queue.ID, "name": "A", "extra": true})
	if resp.Code != http.StatusBadRequest || errorCode(t, resp).Code != "invalid_json" {
		t.Fatalf("expected invalid_json for unknown field, got %d", resp.Code)
	}
}

func TestCreateTicketClosedQueue(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)

	resp := ts.do(http.MethodPatch, "/api/queues/"+queue.ID+"/toggle", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("toggle: %d", resp.Code)
	}
	resp = ts.do(http.MethodPost, "/api/tickets", map[string]interface{}{"queue_id": queue.ID, "name": "A"})
	if resp.Code != http.StatusConflict || errorCode(t, resp).Code != "queue_closed" {
		t.Fatalf("expected queue_closed, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestPublicTicket(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(6)
	first := ts.join(queue.ID, "A")
	ts.now = ts.now.Add(time.Minute)
	second := ts.join(queue.ID, "B")

	resp := ts.do(http.MethodGet, "/api/tickets/public/"+second.Ticket.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var view publicTicketResponse
	decode(t, resp, &view)
	if view.Position == nil || *view.Position != 2 || *view.ETASeconds != 360 {
		t.Fatalf("unexpected position/eta: %+v", view)
	}
	if view.TotalWaiting != 2 || len(view.AheadOfYou) != 1 || view.AheadOfYou[0].Name != "A" {
		t.Fatalf("unexpected queue view: %+v", view)
	}
	if view.AvgServiceMinutes != 6 || view.ServiceStats.RecentAvgSec != 360 || view.QueueName != "Front desk" {
		t.Fatalf("unexpected queue details: %+v", view)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("contact")) {
		t.Fatalf("public view must not expose contact data: %s", resp.Body.String())
	}

	resp = ts.do(http.MethodPatch, "/api/tickets/"+first.Ticket.ID+"/status", map[string]string{"status": "served"})
	if resp.Code != http.StatusOK {
		t.Fatalf("serve: %d %s", resp.Code, resp.Body.String())
	}
	resp = ts.do(http.MethodGet, "/api/tickets/public/"+first.Ticket.ID, nil)
	var served map[string]interface{}
	decode(t, resp, &served)
	if position, ok := served["position"]; !ok || position != nil {
		t.Fatalf("expected null position for served ticket, got %v", served)
	}
}

func TestLeaveAndLeftView(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)
	resp := ts.do(http.MethodPost, "/api/tickets", map[string]interface{}{
		"queue_id": queue.ID, "name": "A", "contact_type": "phone", "contact_value": "555-0100",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("join: %d %s", resp.Code, resp.Body.String())
	}
	var joined joinResponse
	decode(t, resp, &joined)

	for i := 0; i < 2; i++ {
		resp := ts.do(http.MethodPatch, "/api/tickets/"+joined.Ticket.ID+"/leave", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("leave attempt %d: %d", i, resp.Code)
		}
		if bytes.Contains(resp.Body.Bytes(), []byte("contact")) {
			t.Fatalf("leave response must not expose contact data: %s", resp.Body.String())
		}
		var left leftTicketResponse
		decode(t, resp, &left)
		if left.Status != models.StatusLeft || left.Message != service.LeftMessage {
			t.Fatalf("unexpected leave response: %+v", left)
		}
	}

	resp = ts.do(http.MethodGet, "/api/tickets/public/"+joined.Ticket.ID, nil)
	var view leftTicketResponse
	decode(t, resp, &view)
	if view.Status != models.StatusLeft || view.Message != service.LeftMessage || view.LeftAt == nil {
		t.Fatalf("unexpected left view: %+v", view)
	}

	served := ts.join(queue.ID, "B")
	ts.do(http.MethodPatch, "/api/tickets/"+served.Ticket.ID+"/status", map[string]string{"status": "served"})
	resp = ts.do(http.MethodPatch, "/api/tickets/"+served.Ticket.ID+"/leave", nil)
	if resp.Code != http.StatusConflict || errorCode(t, resp).Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %d", resp.Code)
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)
	joined := ts.join(queue.ID, "A")

	cases := []struct {
		status string
		code   int
	}{
		{"waiting", http.StatusBadRequest},
		{"done", http.StatusBadRequest},
		{"cancelled", http.StatusOK},
		{"cancelled", http.StatusOK},
		{"called", http.StatusConflict},
	}
	for _, tc := range cases {
		resp := ts.do(http.MethodPatch, "/api/tickets/"+joined.Ticket.ID+"/status", map[string]string{"status": tc.status})
		if resp.Code != tc.code {
			t.Fatalf("status %s: expected %d, got %d %s", tc.status, tc.code, resp.Code, resp.Body.String())
		}
	}

	resp := ts.do(http.MethodPatch, "/api/tickets/6f1f6f9e-0000-4000-8000-000000000000/status", map[string]string{"status": "called"})
	if resp.Code != http.StatusNotFound || errorCode(t, resp).Code != "ticket_not_found" {
		t.Fatalf("expected ticket_not_found, got %d", resp.Code)
	}
	resp = ts.do(http.MethodPatch, "/api/tickets/not-a-uuid/status", map[string]string{"status": "called"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", resp.Code)
	}
}

func TestQueueAvgServiceMinutesBound(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodPost, "/api/queues", map[string]interface{}{"name": "Front desk", "avg_service_minutes": 1441})
	if resp.Code != http.StatusBadRequest || errorCode(t, resp).Field != "avg_service_minutes" {
		t.Fatalf("expected 400 on avg_service_minutes, got %d %s", resp.Code, resp.Body.String())
	}

	queue := ts.queue(5)
	resp = ts.do(http.MethodPatch, "/api/queues/"+queue.ID+"/settings", map[string]interface{}{"avg_service_minutes": 153722867280912931})
	if resp.Code != http.StatusBadRequest || errorCode(t, resp).Field != "avg_service_minutes" {
		t.Fatalf("expected 400 on avg_service_minutes, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestQueueSettingsAndDelete(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)

	resp := ts.do(http.MethodPatch, "/api/queues/"+queue.ID+"/settings", map[string]interface{}{"avg_service_minutes": 0, "custom_message": "Closing at 5"})
	if resp.Code != http.StatusOK {
		t.Fatalf("settings: %d %s", resp.Code, resp.Body.String())
	}
	var updated models.Queue
	decode(t, resp, &updated)
	if updated.AvgServiceSeconds != 60 || updated.CustomMessage != "Closing at 5" || !updated.IsOpen {
		t.Fatalf("unexpected settings: %+v", updated)
	}

	ts.join(queue.ID, "A")
	resp = ts.do(http.MethodDelete, "/api/queues/"+queue.ID, nil)
	if resp.Code != http.StatusConflict || errorCode(t, resp).Code != "queue_has_tickets" {
		t.Fatalf("expected queue_has_tickets, got %d", resp.Code)
	}
	resp = ts.do(http.MethodDelete, "/api/queues/"+queue.ID+"?force=true", nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	resp = ts.do(http.MethodGet, "/api/queues/"+queue.ID+"/active", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestActiveAndDayTickets(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)
	first := ts.join(queue.ID, "A")
	ts.join(queue.ID, "B")
	ts.do(http.MethodPatch, "/api/tickets/"+first.Ticket.ID+"/status", map[string]string{"status": "served"})

	resp := ts.do(http.MethodGet, "/api/queues/"+queue.ID+"/active", nil)
	var active []activeTicketResponse
	decode(t, resp, &active)
	if len(active) != 1 || active[0].Name != "B" {
		t.Fatalf("unexpected active tickets: %+v", active)
	}

	resp = ts.do(http.MethodGet, "/api/queues/"+queue.ID+"/tickets", nil)
	var day []models.Ticket
	decode(t, resp, &day)
	if len(day) != 2 {
		t.Fatalf("expected 2 tickets today, got %d", len(day))
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	queue := ts.queue(5)
	joined := ts.join(queue.ID, "A")
	ts.now = ts.now.Add(12 * time.Minute)
	ts.do(http.MethodPatch, "/api/tickets/"+joined.Ticket.ID+"/status", map[string]string{"status": "served"})

	resp := ts.do(http.MethodGet, "/api/analytics/queues/"+queue.ID+"/served-per-hour?date=2024-03-04", nil)
	var hours []struct {
		Hour   string `json:"hour"`
		Served int    `json:"served"`
	}
	decode(t, resp, &hours)
	if len(hours) != 24 || hours[10].Served != 1 || hours[10].Hour != "10:00" {
		t.Fatalf("unexpected served per hour: %+v", hours)
	}

	resp = ts.do(http.MethodGet, "/api/analytics/queues/"+queue.ID+"/summary", nil)
	var summary map[string]interface{}
	decode(t, resp, &summary)
	if summary["served"] != float64(1) || summary["avg_wait_mins"] != float64(12) {
		t.Fatalf("unexpected summary: %v", summary)
	}

	resp = ts.do(http.MethodGet, "/api/analytics/daily?days=3", nil)
	var buckets []map[string]interface{}
	decode(t, resp, &buckets)
	if len(buckets) != 3 || buckets[0]["date"] != "2024-03-04" || buckets[0]["served"] != float64(1) {
		t.Fatalf("unexpected daily buckets: %v", buckets)
	}

	resp = ts.do(http.MethodGet, "/api/analytics/custom?start=2024-03-05&end=2024-03-01", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", resp.Code)
	}
	resp = ts.do(http.MethodGet, "/api/analytics/queues/"+queue.ID+"/custom?start=2024-03-01&end=2024-03-04", nil)
	decode(t, resp, &buckets)
	if len(buckets) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(buckets))
	}
	resp = ts.do(http.MethodGet, "/api/analytics/custom?start=03/01/2024&end=2024-03-04", nil)
	if resp.Code != http.StatusBadRequest || errorCode(t, resp).Field != "start" {
		t.Fatalf("expected start validation error, got %d", resp.Code)
	}

	resp = ts.do(http.MethodGet, "/api/analytics/global", nil)
	var global map[string]interface{}
	decode(t, resp, &global)
	if global["total_tickets"] != float64(1) || global["total_queues"] != float64(1) {
		t.Fatalf("unexpected global stats: %v", global)
	}
}

type unavailableStore struct {
	*memory.Store
}

func (unavailableStore) GetQueue(context.Context, string) (models.Queue, error) {
	return models.Queue{}, store.Unavailable(errors.New("connection reset"))
}

func TestUnavailableStoreMapsTo503(t *testing.T) {
	mem := memory.Open(memory.Options{})
	t.Cleanup(mem.Close)
	svc := service.New(unavailableStore{mem}, service.Options{Location: time.UTC})
	h := NewHandler(svc)

	body, _ := json.Marshal(map[string]string{"queue_id": "6f1f6f9e-0000-4000-8000-000000000000", "name": "A"})
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodDelete, "/api/tickets", nil)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
