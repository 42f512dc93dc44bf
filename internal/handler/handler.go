package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/templui/usermap/internal/ui"
	"github.com/templui/usermap/internal/ui/pages"
	"github.com/templui/usermap/internal/validation"
)

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	ui.RenderStatus(w, r, http.StatusInternalServerError,
		pages.Information("Something went wrong", "Please try again in a moment."))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// localPath returns next if it is a path on this site, otherwise "/".
func localPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}

// formFloat parses a numeric form field. Empty means zero.
func formFloat(r *http.Request, field string, errs *validation.Result) float64 {
	v := strings.TrimSpace(r.PostFormValue(field))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = errs.With(field, "Enter a number.")
		return 0
	}
	return f
}

func formInt(r *http.Request, field string, errs *validation.Result) int {
	v := strings.TrimSpace(r.PostFormValue(field))
	i, err := strconv.Atoi(v)
	if err != nil {
		*errs = errs.With(field, "Select a valid choice.")
		return -1
	}
	return i
}

func formBool(r *http.Request, field string) bool {
	switch r.PostFormValue(field) {
	case "true", "on", "1":
		return true
	}
	return false
}

func registrationForm(r *http.Request) (validation.Registration, validation.Result) {
	var errs validation.Result
	form := validation.Registration{
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password1"),
		PasswordConfirm: r.PostFormValue("password2"),
		Name:            r.PostFormValue("name"),
		Website:         strings.TrimSpace(r.PostFormValue("website")),
		Role:            formInt(r, "user_role", &errs),
		Latitude:        formFloat(r, "latitude", &errs),
		Longitude:       formFloat(r, "longitude", &errs),
		EmailUpdates:    formBool(r, "email_updates"),
	}
	return form, errs
}

func basicInformationForm(r *http.Request) (validation.BasicInformation, validation.Result) {
	var errs validation.Result
	form := validation.BasicInformation{
		Email:        r.PostFormValue("email"),
		Name:         r.PostFormValue("name"),
		Website:      strings.TrimSpace(r.PostFormValue("website")),
		Latitude:     formFloat(r, "latitude", &errs),
		Longitude:    formFloat(r, "longitude", &errs),
		EmailUpdates: formBool(r, "email_updates"),
	}
	return form, errs
}

// mergeChecks combines parse problems with the regular validation of form,
// dropping range errors for fields that did not parse at all.
func mergeChecks(form any, parseErrs validation.Result) validation.Result {
	checked := validation.Check(form)
	out := parseErrs
	for _, e := range checked.Errors {
		if !parseErrs.Has(e.Field) {
			out = out.With(e.Field, e.Message)
		}
	}
	return out
}
