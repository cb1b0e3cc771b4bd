package middleware

import (
	"net/http"

	"crowdwatch/internal/logger"
)

// RecoverMiddleware converts an unexpected panic in a handler into a
// generic failure response instead of tearing down the server; the
// panic is logged with its value.
func RecoverMiddleware(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, rec)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
