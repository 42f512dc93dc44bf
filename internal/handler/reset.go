package handler

import (
	"errors"
	"net/http"

	"github.com/templui/usermap/internal/service"
	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
	"github.com/templui/usermap/internal/validation"
)

type PasswordResetHandler struct {
	authService *service.AuthService
}

func NewPasswordResetHandler(authService *service.AuthService) *PasswordResetHandler {
	return &PasswordResetHandler{authService: authService}
}

func (h *PasswordResetHandler) RequestPage(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.PasswordResetRequest(pages.PasswordResetRequestData{}))
}

func (h *PasswordResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	form := validation.PasswordResetRequest{Email: r.PostFormValue("email")}

	err := h.authService.RequestPasswordReset(r.Context(), form)

	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.PasswordResetRequest(pages.PasswordResetRequestData{
			Email:  form.Email,
			Errors: formErr.Result,
		}))
	case errors.Is(err, service.ErrMailDispatch):
		ui.RenderStatus(w, r, http.StatusServiceUnavailable, pages.Information("Email not sent",
			"We could not send the password reset email right now. Please try again later."))
	case err != nil:
		serverError(w, r, err)
	default:
		http.Redirect(w, r, "/password-reset/done", http.StatusSeeOther)
	}
}

func (h *PasswordResetHandler) Done(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.PasswordResetDone())
}

// ConfirmPage shows the new password form if the link is still good.
func (h *PasswordResetHandler) ConfirmPage(w http.ResponseWriter, r *http.Request) {
	_, err := h.authService.VerifyPasswordReset(r.Context(), r.PathValue("uid"), r.PathValue("token"))
	if err != nil && !errors.Is(err, service.ErrInvalidOrExpired) {
		serverError(w, r, err)
		return
	}

	ui.Render(w, r, pages.PasswordResetConfirm(pages.PasswordResetConfirmData{ValidLink: err == nil}))
}

func (h *PasswordResetHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	form := validation.SetPassword{
		NewPassword:        r.PostFormValue("new_password1"),
		NewPasswordConfirm: r.PostFormValue("new_password2"),
	}

	_, err := h.authService.ResetPassword(r.Context(), r.PathValue("uid"), r.PathValue("token"), form)

	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.PasswordResetConfirm(pages.PasswordResetConfirmData{
			ValidLink: true,
			Errors:    formErr.Result,
		}))
	case errors.Is(err, service.ErrInvalidOrExpired):
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.PasswordResetConfirm(pages.PasswordResetConfirmData{}))
	case err != nil:
		serverError(w, r, err)
	default:
		http.Redirect(w, r, "/password-reset/complete", http.StatusSeeOther)
	}
}

func (h *PasswordResetHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.PasswordResetComplete())
}
