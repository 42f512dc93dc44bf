package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/templui/usermap/internal/ctxkeys"
	"github.com/templui/usermap/internal/token"
	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
)

const (
	csrfCookieName = "csrf_token"
	csrfFormField  = "csrf_token"
	csrfHeader     = "X-CSRF-Token"
	csrfTokenLen   = 32
	csrfCookieAge  = 7 * 24 * 60 * 60
)

// CSRFProtection hands every request a double-submit token and rejects
// state-changing requests whose form field or header does not match the cookie.
func CSRFProtection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		csrfToken, err := csrfCookieToken(w, r)
		if err != nil {
			slog.ErrorContext(r.Context(), "csrf token unavailable", "error", err)
			ui.RenderStatus(w, r, http.StatusInternalServerError,
				pages.Information("Something went wrong", "Please try again in a moment."))
			return
		}
		ctx := ctxkeys.WithCSRFToken(r.Context(), csrfToken)

		if !safeMethod(r.Method) && !token.KeysEqual(csrfToken, submittedCSRFToken(r)) {
			slog.WarnContext(ctx, "csrf validation failed",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", ClientIP(r),
			)
			ui.RenderStatus(w, r.WithContext(ctx), http.StatusForbidden,
				pages.Information("Request rejected", "Your form expired. Reload the page and try again."))
			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func safeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// Header first (fetch from map.js), then the hidden form field.
func submittedCSRFToken(r *http.Request) string {
	if v := r.Header.Get(csrfHeader); v != "" {
		return v
	}
	return r.PostFormValue(csrfFormField)
}

// csrfCookieToken reuses a well-formed cookie or issues a new one.
func csrfCookieToken(w http.ResponseWriter, r *http.Request) (string, error) {
	cookie, err := r.Cookie(csrfCookieName)
	if err == nil && len(cookie.Value) == base64.RawURLEncoding.EncodedLen(csrfTokenLen) {
		return cookie.Value, nil
	}

	b := make([]byte, csrfTokenLen)
	_, err = rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(b)

	cfg := ctxkeys.Config(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg != nil && cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   csrfCookieAge,
	})
	return value, nil
}
