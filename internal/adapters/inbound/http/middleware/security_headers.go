package middleware

import (
	"net/http"
	"slices"
	"strings"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")

	corsExposed = strings.Join([]string{RequestIDHeader, "Location"}, ", ")
)

// SecurityHeaders marks every response as non-sniffable, non-framable and
// non-cacheable, and stamps the API version.
func SecurityHeaders(apiVersion string) func(http.Handler) http.Handler {
	fixed := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
		{"API-Version", apiVersion},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, header := range fixed {
				w.Header().Set(header[0], header[1])
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS admits browser front-ends from allowedOrigins, "*" admitting any.
// extraHeaders are request headers allowed on top of the identity and
// tracing ones, and are exposed back to scripts.
func CORS(allowedOrigins []string, extraHeaders ...string) func(http.Handler) http.Handler {
	allowed := append([]string{"Content-Type", UserIDHeader, RequestIDHeader, "traceparent", "tracestate"}, extraHeaders...)
	allowHeaders := strings.Join(allowed, ", ")

	exposeHeaders := corsExposed
	if len(extraHeaders) > 0 {
		exposeHeaders += ", " + strings.Join(extraHeaders, ", ")
	}

	anyOrigin := slices.Contains(allowedOrigins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || (!anyOrigin && !slices.Contains(allowedOrigins, origin)) {
				next.ServeHTTP(w, r)

				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", exposeHeaders)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
