package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestStaffAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := StaffAuth("s3cret", next)

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health is public", http.MethodGet, "/healthz", "", http.StatusTeapot},
		{"join is public", http.MethodPost, "/api/tickets", "", http.StatusTeapot},
		{"public lookup", http.MethodGet, "/api/tickets/public/abc", "", http.StatusTeapot},
		{"leave is public", http.MethodPatch, "/api/tickets/abc/leave", "", http.StatusTeapot},
		{"active list is public", http.MethodGet, "/api/queues/abc/active", "", http.StatusTeapot},
		{"status change needs token", http.MethodPatch, "/api/tickets/abc/status", "", http.StatusUnauthorized},
		{"queue list needs token", http.MethodGet, "/api/queues", "", http.StatusUnauthorized},
		{"analytics needs token", http.MethodGet, "/api/analytics/global", "Bearer wrong", http.StatusUnauthorized},
		{"valid token", http.MethodGet, "/api/analytics/global", "Bearer s3cret", http.StatusTeapot},
		{"scheme is case insensitive", http.MethodGet, "/api/queues", "bearer s3cret", http.StatusTeapot},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.auth != "" {
			req.Header.Set("Authorization", tc.auth)
		}
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestStaffAuthDisabledWithoutToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
	resp := httptest.NewRecorder()
	StaffAuth("", next).ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", resp.Code)
	}
}

func TestStaffAuthWithBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := StaffAuth(string(hash), next)

	for token, want := range map[string]int{"s3cret": http.StatusNoContent, "guess": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, "/api/queues", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("token %q: expected %d, got %d", token, want, resp.Code)
		}
	}
}
