package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/service"
	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
)

const (
	informationSlug = "information"
	dataPrivacySlug = "data-privacy"
)

type HomeHandler struct {
	contentService *service.ContentService
	tilesURL       string
	attribution    string
}

func NewHomeHandler(contentService *service.ContentService, tilesURL, attribution string) *HomeHandler {
	return &HomeHandler{
		contentService: contentService,
		tilesURL:       tilesURL,
		attribution:    attribution,
	}
}

// Index is the map page.
func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	roles := model.Roles()
	mapRoles := make([]pages.MapRole, 0, len(roles))
	for _, role := range roles {
		mapRoles = append(mapRoles, pages.MapRole{
			Role:      int(role.Role),
			Label:     role.Label,
			IconURL:   role.IconURL,
			ShadowURL: role.ShadowURL,
		})
	}

	ui.Render(w, r, pages.Index(pages.IndexData{
		Roles: roles,
		Map: pages.MapConfig{
			TilesURL:    h.tilesURL,
			Attribution: h.attribution,
			UsersURL:    "/api/users",
			Roles:       mapRoles,
			Center:      [2]float64{30, 0},
			Zoom:        2,
		},
		Information: h.contentHTML(r, informationSlug),
		DataPrivacy: h.contentHTML(r, dataPrivacySlug),
		Menu: pages.UserMenu{
			AddUser:  true,
			Download: true,
			Reminder: true,
		},
	}))
}

func (h *HomeHandler) contentHTML(r *http.Request, slug string) string {
	page, err := h.contentService.Page(slug)
	if err != nil {
		if !errors.Is(err, service.ErrPageNotFound) {
			slog.WarnContext(r.Context(), "failed to load content page", "slug", slug, "error", err)
		}
		return ""
	}
	return page.Content
}

func (h *HomeHandler) NotFoundPage(w http.ResponseWriter, r *http.Request) {
	ui.RenderStatus(w, r, http.StatusNotFound, pages.NotFound())
}
