package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

type TokenValidator func(token string, r *http.Request) bool

// ExtractToken reads a bearer token, falling back to the apikey header.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if parts := strings.SplitN(auth, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(r.Header.Get("apikey"))
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if !validator(token, r) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MasterToken validates against a single static token.
func MasterToken(expected string) TokenValidator {
	return func(token string, _ *http.Request) bool {
		return expected != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
	}
}
