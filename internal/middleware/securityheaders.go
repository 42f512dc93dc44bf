package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/templui/usermap/internal/config"
)

// leafletCDN serves the Leaflet script and stylesheet used by the map page.
const leafletCDN = "https://unpkg.com"

// SecurityHeaders sets the Content-Security-Policy and the usual hardening
// headers. Must run after NonceMiddleware.
func SecurityHeaders(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", contentSecurityPolicy(GetNonce(r.Context()), cfg))
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(self)")
			if cfg.IsProduction() {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contentSecurityPolicy(nonce string, cfg *config.Config) string {
	script := []string{"'self'", leafletCDN}
	if nonce != "" {
		script = append(script, fmt.Sprintf("'nonce-%s'", nonce))
	}

	connect := []string{"'self'"}
	if cfg.S3Endpoint != "" {
		connect = append(connect, cfg.S3Endpoint)
	}

	directives := []string{
		"default-src 'self'",
		"script-src " + strings.Join(script, " "),
		"style-src 'self' " + leafletCDN,
		// map tiles come from a configurable tile server
		"img-src 'self' data: https:",
		"connect-src " + strings.Join(connect, " "),
		"font-src 'self'",
		"object-src 'none'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}
	return strings.Join(directives, "; ")
}
