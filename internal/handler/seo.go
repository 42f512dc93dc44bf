package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/usermap/internal/service"
)

type SEOHandler struct {
	sitemapService *service.SitemapService
	baseURL        string
}

func NewSEOHandler(contentService *service.ContentService, baseURL string) *SEOHandler {
	return &SEOHandler{
		sitemapService: service.NewSitemapService(contentService, baseURL),
		baseURL:        strings.TrimSuffix(baseURL, "/"),
	}
}

// Robots keeps crawlers out of account pages and points them at the sitemap.
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /account\nDisallow: /confirm/\nDisallow: /password-reset/\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", h.baseURL)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to write robots.txt", "error", err)
	}
}

// Sitemap generates and serves the sitemap.xml dynamically
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	sitemap, err := h.sitemapService.GenerateSitemap()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate sitemap", "error", err)
		http.Error(w, "Failed to generate sitemap", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(sitemap)
}
