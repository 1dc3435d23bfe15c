package web

import (
	"fmt"
	"net/http"
	"time"
)

const hstsExpiration = 2 * 365 * 24 * time.Hour

// securityHeaders sets baseline browser protections on every response. The
// gateway fronts a cookie-based session, so clickjacking and sniffing
// protections matter more here than on a pure API. HSTS is only meaningful
// behind TLS, so it is tied to production mode like the cookie Secure flag.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	hsts := fmt.Sprintf("max-age=%.0f; includeSubDomains", hstsExpiration.Seconds())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("X-Frame-Options", "DENY")
			if production {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
