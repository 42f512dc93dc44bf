package service

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/templui/usermap/internal/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrPageNotFound = errors.New("page not found")

// ContentPage is a markdown document rendered to HTML.
type ContentPage struct {
	Title       string
	Slug        string
	Content     string
	LastUpdated string
}

// ContentService serves the static pages (information, data privacy).
// In development pages are re-read on every request.
type ContentService struct {
	files  fs.FS
	reload bool
	parser *markdown.Parser

	mu    sync.RWMutex
	pages map[string]*ContentPage
}

func NewContentService(files fs.FS, reload bool) *ContentService {
	return &ContentService{
		files:  files,
		reload: reload,
		parser: markdown.NewParser(),
		pages:  make(map[string]*ContentPage),
	}
}

func (s *ContentService) LoadPages() error {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return fmt.Errorf("failed to read content directory: %w", err)
	}

	pages := make(map[string]*ContentPage)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		slug := strings.TrimSuffix(entry.Name(), ".md")
		page, err := s.loadPage(slug)
		if err != nil {
			return fmt.Errorf("failed to load page %s: %w", slug, err)
		}
		pages[slug] = page
	}

	s.mu.Lock()
	s.pages = pages
	s.mu.Unlock()
	return nil
}

func (s *ContentService) loadPage(slug string) (*ContentPage, error) {
	name := path.Clean(slug + ".md")
	content, err := fs.ReadFile(s.files, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	html, meta, err := s.parser.ParseWithFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}

	title, _ := meta["title"].(string)
	if title == "" {
		title = cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
	}

	lastUpdated := ""
	if v, ok := meta["lastUpdated"]; ok {
		lastUpdated = parseDate(v)
	}
	if lastUpdated == "" {
		info, err := fs.Stat(s.files, name)
		if err == nil && !info.ModTime().IsZero() {
			lastUpdated = info.ModTime().Format("January 2, 2006")
		}
	}

	return &ContentPage{
		Title:       title,
		Slug:        slug,
		Content:     string(html),
		LastUpdated: lastUpdated,
	}, nil
}

func (s *ContentService) Page(slug string) (*ContentPage, error) {
	if s.reload {
		err := s.LoadPages()
		if err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	page, ok := s.pages[slug]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, slug)
	}

	return page, nil
}

// Pages returns every loaded page ordered by slug.
func (s *ContentService) Pages() ([]*ContentPage, error) {
	if s.reload {
		err := s.LoadPages()
		if err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]*ContentPage, 0, len(s.pages))
	for _, page := range s.pages {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Slug < pages[j].Slug })
	return pages, nil
}

func parseDate(value any) string {
	var dateStr string

	switch v := value.(type) {
	case string:
		dateStr = v
	case time.Time:
		return v.Format("January 2, 2006")
	default:
		return ""
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"January 2, 2006",
		time.RFC3339,
	}

	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t.Format("January 2, 2006")
		}
	}

	return dateStr
}
