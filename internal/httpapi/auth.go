package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// StaffAuth requires the staff bearer token on every non-public endpoint. The configured token is
// either the plain secret or its bcrypt hash. An empty token disables the check.
func StaffAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	matches := tokenMatcher(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		presented := bearerToken(r.Header.Get("Authorization"))
		if presented == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing bearer token", "")
			return
		}
		if !matches(presented) {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid bearer token", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenMatcher(token string) func(string) bool {
	if strings.HasPrefix(token, "$2a$") || strings.HasPrefix(token, "$2b$") || strings.HasPrefix(token, "$2y$") {
		hash := []byte(token)
		return func(presented string) bool {
			return bcrypt.CompareHashAndPassword(hash, []byte(presented)) == nil
		}
	}
	return func(presented string) bool {
		return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/tickets":
		return r.Method == http.MethodPost
	}

	if parts := pathParts(r.URL.Path, "/api/tickets/"); strings.HasPrefix(r.URL.Path, "/api/tickets/") {
		switch {
		case len(parts) == 2 && parts[0] == "public":
			return r.Method == http.MethodGet
		case len(parts) == 2 && parts[1] == "leave":
			return r.Method == http.MethodPatch
		}
		return false
	}
	if parts := pathParts(r.URL.Path, "/api/queues/"); strings.HasPrefix(r.URL.Path, "/api/queues/") {
		return len(parts) == 2 && parts[1] == "active" && r.Method == http.MethodGet
	}
	return false
}
