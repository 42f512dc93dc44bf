package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/service"
)

type UsersHandler struct {
	userService *service.UserService
}

func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{userService: userService}
}

type usersResponse struct {
	Users []model.PublicUser `json:"users"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// List serves the map layer of one role: GET /api/users?user_role=N
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_role")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_role is required"})
		return
	}

	role, err := model.ParseRole(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_role must be 0, 1 or 2"})
		return
	}

	users, err := h.userService.PublicUsers(r.Context(), role)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users", "role", role, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

// Download hands out the CSV of everyone on the map. With export storage the
// file is uploaded and the browser is sent to a temporary link.
func (h *UsersHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.userService.HasExportStorage() {
		url, err := h.userService.PublishExport(r.Context())
		if err == nil {
			http.Redirect(w, r, url, http.StatusSeeOther)
			return
		}
		slog.WarnContext(r.Context(), "export upload failed, streaming instead", "error", err)
	}

	var buf bytes.Buffer
	err := h.userService.WriteCSV(r.Context(), &buf)
	if err != nil {
		serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ExportFilename))
	_, _ = buf.WriteTo(w)
}
