package middleware

import (
	"crypto/subtle"
	stdjson "encoding/json"
	"net/http"

	perr "mailroom/internal/platform/errors"
	pnet "mailroom/internal/platform/net"
)

// APIKey guards a route group with a shared secret carried in X-API-Key.
// An empty expected key disables the check (local/dev)
func APIKey(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				status, body := pnet.Error(perr.Unauthorizedf("invalid or missing api key"), pnet.RequestID(r.Context()))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(status)
				_ = stdjson.NewEncoder(w).Encode(body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
