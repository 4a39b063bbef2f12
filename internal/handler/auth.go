package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/sha3"
)

const apiKeyHeader = "X-Api-Key"

// HashAPIKey returns the lowercase hex SHA3-256 digest stored as ENCRYPTED_API_KEY.
func HashAPIKey(key string) string {
	sum := sha3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// APIKeyAuth admits requests whose X-Api-Key hashes to the configured digest.
// With no digest configured every request is rejected.
func (h *Handler) APIKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			h.Logger.ErrorContext(r.Context(), "unauthorized call to api", "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		provided := HashAPIKey(key)
		if h.APIKeyHash == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(h.APIKeyHash)) != 1 {
			h.Logger.ErrorContext(r.Context(), "unauthorized (invalid key)", "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
