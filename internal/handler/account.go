package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/templui/usermap/internal/ctxkeys"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/service"
	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
	"github.com/templui/usermap/internal/validation"
)

const (
	actionBasicInfo      = "change_basic_info"
	actionChangePassword = "change_password"

	anchorBasicInfo = "basic-information"
	anchorSecurity  = "security"
)

type AccountHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAccountHandler(authService *service.AuthService, userService *service.UserService) *AccountHandler {
	return &AccountHandler{
		authService: authService,
		userService: userService,
	}
}

func (h *AccountHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.Register(pages.RegisterData{Roles: model.Roles()}))
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, parseErrs := registrationForm(r)
	if !parseErrs.Valid() {
		h.registerForm(w, r, form, mergeChecks(form, parseErrs))
		return
	}

	user, err := h.authService.Register(r.Context(), form)

	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		h.registerForm(w, r, form, formErr.Result)
	case errors.Is(err, service.ErrEmailAlreadyExists):
		h.registerForm(w, r, form, validation.Result{}.With("email", "A user with that email already exists."))
	case errors.Is(err, service.ErrMailDispatch) && user != nil:
		support := "the site operator"
		if cfg := ctxkeys.Config(r.Context()); cfg != nil && cfg.SupportEmail != "" {
			support = cfg.SupportEmail
		}
		ui.Render(w, r, pages.Information("Registration saved",
			fmt.Sprintf("Your account was created, but we could not send the confirmation email. Please contact %s.", support)))
	case err != nil:
		serverError(w, r, err)
	default:
		ui.Render(w, r, pages.Information("Check your inbox",
			fmt.Sprintf("We sent a confirmation link to %s. Follow it to appear on the map.", user.Email)))
	}
}

func (h *AccountHandler) registerForm(w http.ResponseWriter, r *http.Request, form validation.Registration, errs validation.Result) {
	form.Password = ""
	form.PasswordConfirm = ""
	ui.RenderStatus(w, r, http.StatusBadRequest, pages.Register(pages.RegisterData{
		Form:   form,
		Errors: errs,
		Roles:  model.Roles(),
	}))
}

// Confirm handles the link from the confirmation email.
func (h *AccountHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	result, err := h.authService.ConfirmRegistration(r.Context(), r.PathValue("uid"), r.PathValue("key"))
	if err != nil {
		serverError(w, r, err)
		return
	}

	switch result {
	case service.ConfirmResultConfirmed:
		ui.Render(w, r, pages.Information("Registration confirmed",
			"Thank you for confirming your email address. You are now on the map and can log in."))
	case service.ConfirmResultAlreadyConfirmed:
		ui.Render(w, r, pages.Information("Already confirmed",
			"Your registration was already confirmed. You can log in."))
	default:
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.Information("Invalid confirmation link",
			"This confirmation link is invalid. Please check that you copied the whole link from the email."))
	}
}

func (h *AccountHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	ui.Render(w, r, pages.Login(pages.LoginData{Next: localPath(r.URL.Query().Get("next"))}))
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	form := validation.Login{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	next := localPath(r.PostFormValue("next"))

	result := validation.Check(form)
	if !result.Valid() {
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.Login(pages.LoginData{
			Email:  form.Email,
			Next:   next,
			Errors: result,
		}))
		return
	}

	user, err := h.authService.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		message, ok := loginFailure(err)
		if !ok {
			serverError(w, r, err)
			return
		}
		ui.RenderStatus(w, r, http.StatusUnauthorized, pages.Login(pages.LoginData{
			Email:         form.Email,
			Next:          next,
			NonFieldError: message,
		}))
		return
	}

	err = h.authService.StartSession(w, user)
	if err != nil {
		serverError(w, r, err)
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

// loginFailure maps gate refusals to the message shown above the form.
func loginFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrBadCredentials):
		return "Please enter a correct email and password. Note that both fields may be case-sensitive.", true
	case errors.Is(err, service.ErrInactiveAccount):
		return "This account is inactive.", true
	case errors.Is(err, service.ErrUnconfirmedAccount):
		return "Please confirm your registration email first.", true
	}
	return "", false
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	if user := ctxkeys.User(r.Context()); user != nil {
		slog.InfoContext(r.Context(), "user logged out", "user_id", user.ID)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// EditPage shows the basic information and password forms.
func (h *AccountHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	data := h.accountData(user)
	switch r.URL.Query().Get("updated") {
	case "basic":
		data.Success = "Your information has been updated."
	case "password":
		data.Success = "Your password has been changed."
	}

	ui.Render(w, r, pages.Account(data))
}

// Update dispatches on the action field since both forms post to /account.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	switch r.PostFormValue("action") {
	case actionBasicInfo:
		h.updateBasicInformation(w, r)
	case actionChangePassword:
		h.changePassword(w, r)
	default:
		ui.RenderStatus(w, r, http.StatusBadRequest, pages.Information("Unknown action",
			"The submitted form could not be processed."))
	}
}

func (h *AccountHandler) updateBasicInformation(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	form, parseErrs := basicInformationForm(r)
	if !parseErrs.Valid() {
		h.basicInformationForm(w, r, user, form, mergeChecks(form, parseErrs))
		return
	}

	_, err := h.userService.UpdateBasicInformation(r.Context(), user, form)

	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		h.basicInformationForm(w, r, user, form, formErr.Result)
	case errors.Is(err, service.ErrEmailAlreadyExists):
		h.basicInformationForm(w, r, user, form, validation.Result{}.With("email", "A user with that email already exists."))
	case err != nil:
		serverError(w, r, err)
	default:
		http.Redirect(w, r, "/account?updated=basic#"+anchorBasicInfo, http.StatusSeeOther)
	}
}

func (h *AccountHandler) basicInformationForm(w http.ResponseWriter, r *http.Request, user *model.User, form validation.BasicInformation, errs validation.Result) {
	data := h.accountData(user)
	data.Basic = form
	data.BasicErrors = errs
	data.Anchor = anchorBasicInfo
	ui.RenderStatus(w, r, http.StatusBadRequest, pages.Account(data))
}

func (h *AccountHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	form := validation.PasswordChange{
		CurrentPassword:    r.PostFormValue("old_password"),
		NewPassword:        r.PostFormValue("new_password1"),
		NewPasswordConfirm: r.PostFormValue("new_password2"),
	}

	updated, err := h.authService.ChangePassword(r.Context(), user, form)

	var formErr *service.FormError
	switch {
	case errors.As(err, &formErr):
		h.passwordForm(w, r, user, formErr.Result)
		return
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		h.passwordForm(w, r, user, validation.Result{}.With("old_password",
			"Your old password was entered incorrectly. Please enter it again."))
		return
	case err != nil:
		serverError(w, r, err)
		return
	}

	// the change ended every session, including this one
	err = h.authService.StartSession(w, updated)
	if err != nil {
		serverError(w, r, err)
		return
	}

	http.Redirect(w, r, "/account?updated=password#"+anchorSecurity, http.StatusSeeOther)
}

func (h *AccountHandler) passwordForm(w http.ResponseWriter, r *http.Request, user *model.User, errs validation.Result) {
	data := h.accountData(user)
	data.PasswordErrors = errs
	data.Anchor = anchorSecurity
	ui.RenderStatus(w, r, http.StatusBadRequest, pages.Account(data))
}

func (h *AccountHandler) accountData(user *model.User) pages.AccountData {
	return pages.AccountData{
		Basic: validation.BasicInformation{
			Email:        user.Email,
			Name:         user.Name,
			Website:      user.Website,
			Latitude:     user.Latitude,
			Longitude:    user.Longitude,
			EmailUpdates: user.EmailUpdates,
		},
		RoleLabel: user.Role.Label(),
	}
}
