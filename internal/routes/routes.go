package routes

import (
	"io/fs"
	"net/http"

	"github.com/templui/usermap/assets"
	"github.com/templui/usermap/internal/app"
	"github.com/templui/usermap/internal/handler"
	"github.com/templui/usermap/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	home := handler.NewHomeHandler(app.ContentService, app.Cfg.LeafletTilesURL, app.Cfg.LeafletTilesAttribution)
	seo := handler.NewSEOHandler(app.ContentService, app.Cfg.AppURL)
	content := handler.NewContentHandler(app.ContentService)
	users := handler.NewUsersHandler(app.UserService)
	account := handler.NewAccountHandler(app.AuthService, app.UserService)
	reset := handler.NewPasswordResetHandler(app.AuthService)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	// Static files
	sub, _ := fs.Sub(assets.AssetsFS, ".")
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(sub))))

	// SEO
	mux.HandleFunc("GET /robots.txt", seo.Robots)
	mux.HandleFunc("GET /sitemap.xml", seo.Sitemap)

	// Map
	mux.HandleFunc("GET /{$}", home.Index)
	mux.HandleFunc("GET /api/users", users.List)
	mux.HandleFunc("GET /download", users.Download)

	// Content
	mux.HandleFunc("GET /pages/{slug}", content.Show)

	// ============================================================================
	// ACCOUNT FLOW (guests only, writes rate limited)
	// ============================================================================

	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("GET /register", middleware.RequireGuest(account.RegisterPage))
	mux.HandleFunc("POST /register", rateLimiter(middleware.RequireGuest(account.Register)))
	mux.HandleFunc("GET /confirm/{uid}/{key}", middleware.RequireGuest(account.Confirm))

	mux.HandleFunc("GET /login", middleware.RequireGuest(account.LoginPage))
	mux.HandleFunc("POST /login", rateLimiter(middleware.RequireGuest(account.Login)))
	mux.HandleFunc("POST /logout", account.Logout)

	mux.HandleFunc("GET /password-reset", middleware.RequireGuest(reset.RequestPage))
	mux.HandleFunc("POST /password-reset", rateLimiter(middleware.RequireGuest(reset.Request)))
	mux.HandleFunc("GET /password-reset/done", middleware.RequireGuest(reset.Done))
	mux.HandleFunc("GET /password-reset/complete", middleware.RequireGuest(reset.Complete))
	mux.HandleFunc("GET /password-reset/{uid}/{token}", middleware.RequireGuest(reset.ConfirmPage))
	mux.HandleFunc("POST /password-reset/{uid}/{token}", rateLimiter(middleware.RequireGuest(reset.Confirm)))

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /account", middleware.RequireAuth(account.EditPage))
	mux.HandleFunc("POST /account", middleware.RequireAuth(account.Update))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	// 404
	mux.HandleFunc("/{path...}", home.NotFoundPage)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Config(app.Cfg),          // Config must be first (needed by SecurityHeaders for S3 endpoint)
		middleware.NonceMiddleware,          // Generate CSP nonce for each request (must be before SecurityHeaders)
		middleware.SecurityHeaders(app.Cfg), // Security headers for all responses (XSS, clickjacking, etc.)
		// Forwarding headers count only from TRUSTED_PROXIES; RateLimit and RequestLogging read the result
		middleware.RealIP(app.Cfg.TrustedProxies),
		middleware.RequestLogging,
		middleware.CSRFProtection, // CSRF protection for all state-changing requests
		middleware.AuthMiddleware(app.AuthService),
		middleware.WithURLPath,
	)
}
