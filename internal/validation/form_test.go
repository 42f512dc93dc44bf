package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRegistration() Registration {
	return Registration{
		Email:           "a@x.com",
		Password:        "correct horse battery",
		PasswordConfirm: "correct horse battery",
		Name:            "Ada",
		Website:         "https://example.org",
		Role:            1,
		Latitude:        52.52,
		Longitude:       13.40,
	}
}

func TestCheck_ValidRegistration(t *testing.T) {
	result := Check(validRegistration())
	assert.True(t, result.Valid(), "%+v", result.Errors)
}

func TestCheck_RegistrationFieldErrors(t *testing.T) {
	form := validRegistration()
	form.Email = "not-an-email"
	form.PasswordConfirm = "something else entirely"
	form.Name = "   "
	form.Website = "ftp://example.org"
	form.Role = 7
	form.Latitude = 91

	result := Check(form)

	assert.False(t, result.Valid())
	assert.Equal(t, "Invalid email address format.", result.Get("email"))
	assert.Equal(t, "The two password fields didn't match.", result.Get("password2"))
	assert.Equal(t, "Name is required.", result.Get("name"))
	assert.True(t, result.Has("website"))
	assert.True(t, result.Has("user_role"))
	assert.True(t, result.Has("latitude"))
	assert.False(t, result.Has("longitude"))
	assert.False(t, result.Has("password1"))
}

func TestCheck_WeakPassword(t *testing.T) {
	form := SetPassword{NewPassword: "short", NewPasswordConfirm: "short"}

	result := Check(form)

	assert.Equal(t, "Password must be at least 12 characters.", result.Get("new_password1"))
	assert.False(t, result.Has("new_password2"))
}

func TestCheck_LoginRequiresBothFields(t *testing.T) {
	result := Check(Login{})

	assert.Equal(t, "This field is required.", result.Get("email"))
	assert.Equal(t, "This field is required.", result.Get("password"))
}

func TestResult_WithDoesNotMutate(t *testing.T) {
	base := Result{}.With("email", "taken")
	extended := base.With("name", "missing")

	assert.Len(t, base.Errors, 1)
	assert.Len(t, extended.Errors, 2)
	assert.Len(t, base.Merge(extended).Errors, 3)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@x.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("Bob <a@x.com>"))
	assert.Error(t, ValidateEmail("a@"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct horse battery"))
	assert.NoError(t, ValidatePassword("grün über straße"))

	assert.EqualError(t, ValidatePassword("äöüäöüäöü"), "password must be at least 12 characters")
	assert.EqualError(t, ValidatePassword("098765432109876"), "password can't be entirely numeric")
	assert.EqualError(t, ValidatePassword("mypassword1234"), "password is too common, please choose a stronger one")
	assert.EqualError(t, ValidatePassword("my usermap login"), "password is too common, please choose a stronger one")
	assert.EqualError(t, ValidatePassword(strings.Repeat("ä", 37)), "password must not exceed 72 bytes")
}

func TestPasswordResemblesAccount(t *testing.T) {
	assert.True(t, PasswordResemblesAccount("lovelace-rules-2024", "ada@x.com", "Ada Lovelace"))
	assert.True(t, PasswordResemblesAccount("I am Grace.H 1906!", "grace.h@x.com", "G. Hopper"))
	assert.False(t, PasswordResemblesAccount("ada is fine because short", "ada@x.com", "Ada Li"))
	assert.False(t, PasswordResemblesAccount("correct horse battery", "ada@x.com", "Ada Lovelace"))
}

func TestCheck_RegistrationPasswordResemblesName(t *testing.T) {
	form := validRegistration()
	form.Name = "Ada Lovelace"
	form.Password = "lovelace forever 1815"
	form.PasswordConfirm = form.Password

	result := Check(form)
	assert.Equal(t, "The password is too similar to your name or email address.", result.Get("password1"))
}

func TestValidateWebsite(t *testing.T) {
	assert.NoError(t, ValidateWebsite(""))
	assert.NoError(t, ValidateWebsite("http://example.org/me"))
	assert.Error(t, ValidateWebsite("example.org"))
	assert.Error(t, ValidateWebsite("javascript:alert(1)"))
}
