package middleware

import (
	"net/http"
)

// SecurityHeaders returns a middleware handler that adds security headers.
// Geolocation stays allowed for same-origin callers: the incident map in the
// console centers on the operator's position.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		w.Header().Set("Permissions-Policy", "geolocation=(self), microphone=(), camera=()")

		next.ServeHTTP(w, r)
	})
}
