package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/carelink/internal/store"
)

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// tokenMatch performs a constant-time comparison of a provided token against
// the expected token. Returns true if expected is empty (no auth configured)
// or if tokens match.
func tokenMatch(provided, expected string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// extractUserID extracts the calling user's ID from the request header.
// Returns "" when missing or invalid; handlers treat that as unauthorized.
func extractUserID(r *http.Request) string {
	id := r.Header.Get("X-Carelink-User-Id")
	if id == "" {
		return ""
	}
	if err := store.ValidateUserID(id); err != nil {
		slog.Warn("security.bad_user_id", "length", len(id), "max", store.MaxUserIDLength)
		return ""
	}
	return id
}
