package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"mailroom/internal/platform/net/middleware"
)

// CommonStack returns a baseline per module middleware slice
// compose with the ops api key middleware as needed in main
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.Logger(),

		// cross-origin (tweak config in main if needed)
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}

// APIKey guards routes with a shared X-API-Key secret
func APIKey(expected string) func(http.Handler) http.Handler {
	return middleware.APIKey(expected)
}
