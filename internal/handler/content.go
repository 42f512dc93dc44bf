package handler

import (
	"errors"
	"net/http"

	"github.com/templui/usermap/internal/service"
	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
)

type ContentHandler struct {
	contentService *service.ContentService
}

func NewContentHandler(contentService *service.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

func (h *ContentHandler) Show(w http.ResponseWriter, r *http.Request) {
	page, err := h.contentService.Page(r.PathValue("slug"))
	if errors.Is(err, service.ErrPageNotFound) {
		ui.RenderStatus(w, r, http.StatusNotFound, pages.NotFound())
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}

	ui.Render(w, r, pages.Content(pages.ContentData{
		Title:       page.Title,
		Content:     page.Content,
		LastUpdated: page.LastUpdated,
	}))
}
