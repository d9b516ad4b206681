package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// HeaderAPIKey is the primary API key header.
const HeaderAPIKey = "X-API-Key"

// APIKey rejects requests that carry none of the configured keys, either in
// X-API-Key or as a bearer token.
func APIKey(keys []string) Middleware {
	digests := make([][sha256.Size]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)
			if key == "" || !matches(digests, key) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="davbridge"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matches compares digests so neither content nor length of a key leaks
// through timing. Every key is checked.
func matches(digests [][sha256.Size]byte, key string) bool {
	got := sha256.Sum256([]byte(key))
	found := 0
	for _, d := range digests {
		found |= subtle.ConstantTimeCompare(got[:], d[:])
	}
	return found == 1
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
