// Package api implements the publishing REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/starford/mdpub/internal/catalog"
)

// Auth modes.
const (
	// AuthModePassthrough forwards the caller's bearer token to the catalog.
	AuthModePassthrough = "passthrough"
	// AuthModeToken requires a static API token; it is not forwarded.
	AuthModeToken = "token"
)

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return tok, tok != ""
}

// tokenMatches compares in constant time.
func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// AuthMiddleware returns middleware for the given auth mode.
// In passthrough mode a bearer token, when present, is attached to the request
// context for the catalog. In token mode requests must carry
// "Authorization: Bearer <token>".
func AuthMiddleware(mode, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearer(r)
			if mode == AuthModeToken {
				if !ok || !tokenMatches(tok, token) {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				r = r.WithContext(catalog.WithToken(r.Context(), tok))
			}
			next.ServeHTTP(w, r)
		})
	}
}
