package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Static files are not logged at all.
var skipLoggingPrefixes = []string{
	"/assets/",
}

// The map refetches the listing whenever a legend layer is toggled, so
// successful listing calls are only logged at debug level.
var quietPaths = map[string]bool{
	"/api/users": true,
}

// RequestLogging logs one line per request with status, duration, the
// client address from RealIP and, for signed-in users, the account id.
func RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range skipLoggingPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Handlers further down replace the request context; the user is
		// read back through this holder.
		holder := &requestUser{}
		next.ServeHTTP(rw, r.WithContext(withRequestUser(r.Context(), holder)))

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
		}
		if holder.id != "" {
			attrs = append(attrs, "user_id", holder.id)
		}

		slog.Log(r.Context(), requestLogLevel(r.URL.Path, rw.statusCode), "http request", attrs...)
	})
}

type requestUser struct {
	id string
}

type requestUserKey struct{}

func withRequestUser(ctx context.Context, holder *requestUser) context.Context {
	return context.WithValue(ctx, requestUserKey{}, holder)
}

// noteRequestUser tells RequestLogging which account made the request.
func noteRequestUser(ctx context.Context, id string) {
	if holder, ok := ctx.Value(requestUserKey{}).(*requestUser); ok {
		holder.id = id
	}
}

func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		return slog.LevelWarn
	case quietPaths[path] && status < http.StatusBadRequest:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
