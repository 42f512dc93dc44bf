package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/templui/usermap/internal/ctxkeys"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/service"
)

// Sessions resolves session cookies to users.
type Sessions interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
	ClearJWTCookie(w http.ResponseWriter)
}

// AuthMiddleware checks the session cookie and adds the user to the context if valid
func AuthMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.AuthCookieName)
			if err != nil {
				// No cookie, continue without auth
				next.ServeHTTP(w, r)
				return
			}

			user, err := sessions.Authenticate(r.Context(), cookie.Value)
			// Expired, revoked or for an account that may no longer sign in
			if errors.Is(err, service.ErrInvalidSession) {
				sessions.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			// The session may still be good; keep the cookie and serve the
			// request anonymously.
			if err != nil {
				slog.ErrorContext(r.Context(), "session lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			// Security: Remove secrets from context
			user.PasswordHash = ""
			user.ConfirmationKey = ""

			noteRequestUser(r.Context(), user.ID)
			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends anonymous visitors to the login page, remembering where they were going.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user == nil {
			redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()))
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireGuest keeps signed-in users away from login, registration and password reset.
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user != nil {
			redirect(w, r, "/")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	// For HTMX requests, use HX-Redirect header to force full page redirect
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
