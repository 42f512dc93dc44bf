package service

import (
	"encoding/xml"
	"log/slog"
	"strings"
	"time"
)

// publicRoutes are the static pages that belong in the sitemap.
// Guest-only and signed-in pages are left out.
var publicRoutes = []struct {
	Path       string
	Priority   string
	ChangeFreq string
}{
	{"/", "1.0", "daily"},
	{"/register", "0.5", "monthly"},
	{"/login", "0.3", "monthly"},
}

type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type SitemapService struct {
	contentService *ContentService
	baseURL        string
	now            func() time.Time
}

func NewSitemapService(contentService *ContentService, baseURL string) *SitemapService {
	return &SitemapService{
		contentService: contentService,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		now:            time.Now,
	}
}

// GenerateSitemap renders the sitemap XML for the static routes and content pages.
func (s *SitemapService) GenerateSitemap() ([]byte, error) {
	today := s.now().Format("2006-01-02")
	sitemap := Sitemap{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
	}

	for _, route := range publicRoutes {
		sitemap.URLs = append(sitemap.URLs, SitemapURL{
			Loc:        s.baseURL + route.Path,
			LastMod:    today,
			ChangeFreq: route.ChangeFreq,
			Priority:   route.Priority,
		})
	}

	pages, err := s.contentService.Pages()
	if err != nil {
		slog.Warn("failed to list content pages for sitemap", "error", err)
	}
	for _, page := range pages {
		sitemap.URLs = append(sitemap.URLs, SitemapURL{
			Loc:        s.baseURL + "/pages/" + page.Slug,
			LastMod:    today,
			ChangeFreq: "monthly",
			Priority:   "0.4",
		})
	}

	output, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}

	return []byte(xml.Header + string(output)), nil
}
