package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one problem with one submitted field.
type FieldError struct {
	Field   string
	Message string
}

// Result is the outcome of validating a form. The zero value is valid.
type Result struct {
	Errors []FieldError
}

func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// With returns a copy of r with one more field error.
func (r Result) With(field, message string) Result {
	errs := make([]FieldError, len(r.Errors), len(r.Errors)+1)
	copy(errs, r.Errors)
	return Result{Errors: append(errs, FieldError{Field: field, Message: message})}
}

// Merge returns a copy of r followed by the errors of other.
func (r Result) Merge(other Result) Result {
	errs := make([]FieldError, 0, len(r.Errors)+len(other.Errors))
	errs = append(errs, r.Errors...)
	errs = append(errs, other.Errors...)
	return Result{Errors: errs}
}

// Get returns the first message for field, or "".
func (r Result) Get(field string) string {
	for _, e := range r.Errors {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

// Has reports whether field has at least one error.
func (r Result) Has(field string) bool {
	return r.Get(field) != ""
}

// Registration is the sign-up form.
type Registration struct {
	Email           string  `form:"email" validate:"account_email"`
	Password        string  `form:"password1" validate:"account_password"`
	PasswordConfirm string  `form:"password2" validate:"eqfield=Password"`
	Name            string  `form:"name" validate:"account_name"`
	Website         string  `form:"website" validate:"account_website"`
	Role            int     `form:"user_role" validate:"min=0,max=2"`
	Latitude        float64 `form:"latitude" validate:"min=-90,max=90"`
	Longitude       float64 `form:"longitude" validate:"min=-180,max=180"`
	EmailUpdates    bool    `form:"email_updates"`
}

type Login struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// BasicInformation is the profile part of the edit account page.
type BasicInformation struct {
	Email        string  `form:"email" validate:"account_email"`
	Name         string  `form:"name" validate:"account_name"`
	Website      string  `form:"website" validate:"account_website"`
	Latitude     float64 `form:"latitude" validate:"min=-90,max=90"`
	Longitude    float64 `form:"longitude" validate:"min=-180,max=180"`
	EmailUpdates bool    `form:"email_updates"`
}

type PasswordChange struct {
	CurrentPassword    string `form:"old_password" validate:"required"`
	NewPassword        string `form:"new_password1" validate:"account_password"`
	NewPasswordConfirm string `form:"new_password2" validate:"eqfield=NewPassword"`
}

type PasswordResetRequest struct {
	Email string `form:"email" validate:"account_email"`
}

// SetPassword is the form behind a password reset link.
type SetPassword struct {
	NewPassword        string `form:"new_password1" validate:"account_password"`
	NewPasswordConfirm string `form:"new_password2" validate:"eqfield=NewPassword"`
}

// custom tags delegate to the plain validators so messages stay the same
// whichever path checked the value
var checks = map[string]func(string) error{
	"account_email":    ValidateEmail,
	"account_password": ValidatePassword,
	"account_name":     ValidateName,
	"account_website":  ValidateWebsite,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("form")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(Registration)
		if r.Password != "" && PasswordResemblesAccount(r.Password, r.Email, r.Name) {
			sl.ReportError(r.Password, "password1", "Password", "password_personal", "")
		}
	}, Registration{})

	for tag, check := range checks {
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return check(fl.Field().String()) == nil
		}, true)
		if err != nil {
			panic(fmt.Sprintf("validation: register %s: %v", tag, err))
		}
	}

	return v
}

// Check validates one of the form structs in this package.
func Check(form any) Result {
	err := validate.Struct(form)
	if err == nil {
		return Result{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Result{}.With("__all__", err.Error())
	}

	result := Result{}
	for _, fe := range verrs {
		result = result.With(fe.Field(), message(fe))
	}
	return result
}

func message(fe validator.FieldError) string {
	if check, ok := checks[fe.Tag()]; ok {
		if err := check(fmt.Sprint(fe.Value())); err != nil {
			return capitalize(err.Error()) + "."
		}
	}

	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "eqfield":
		return "The two password fields didn't match."
	case "password_personal":
		return "The password is too similar to your name or email address."
	case "min":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	default:
		return "Enter a valid value."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
