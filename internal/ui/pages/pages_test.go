package pages

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/config"
	"github.com/templui/usermap/internal/ctxkeys"
	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/validation"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))
	return buf.String()
}

func testContext() context.Context {
	ctx := ctxkeys.WithConfig(context.Background(), &config.Config{
		AppName:                 "Test Map",
		LeafletTilesURL:         "https://tiles.example/{z}/{x}/{y}.png",
		LeafletTilesAttribution: "&copy; OSM",
	})
	ctx = ctxkeys.WithCSRFToken(ctx, "csrf-123")
	return templ.WithNonce(ctx, "nonce-abc")
}

func TestEveryPageRenders(t *testing.T) {
	for name, c := range map[string]templ.Component{
		"index":                   Index(IndexData{Roles: model.Roles()}),
		"register":                Register(RegisterData{Roles: model.Roles()}),
		"login":                   Login(LoginData{}),
		"account":                 Account(AccountData{}),
		"information":             Information("Saved", "All good."),
		"content":                 Content(ContentData{Title: "Data privacy"}),
		"password_reset_form":     PasswordResetRequest(PasswordResetRequestData{}),
		"password_reset_done":     PasswordResetDone(),
		"password_reset_confirm":  PasswordResetConfirm(PasswordResetConfirmData{}),
		"password_reset_complete": PasswordResetComplete(),
	} {
		html := render(t, testContext(), c)
		assert.True(t, strings.HasPrefix(html, "<!doctype html>"), name)
		assert.Contains(t, html, `<meta name="csrf-token" content="csrf-123">`, name)
	}
}

func TestIndex(t *testing.T) {
	html := render(t, testContext(), Index(IndexData{
		Roles: model.Roles(),
		Map: MapConfig{
			TilesURL: "https://tiles.example/{z}/{x}/{y}.png",
			UsersURL: "/api/users",
			Zoom:     3,
		},
		Information: "<p>About this map</p>",
		Menu:        UserMenu{AddUser: true, Download: true},
	}))

	assert.Contains(t, html, `<title>Test Map</title>`)
	assert.Contains(t, html, `id="user-map-config"`)
	assert.Contains(t, html, `"usersUrl":"/api/users"`)
	assert.Contains(t, html, `<script src="/assets/js/map.js" nonce="nonce-abc"></script>`)
	assert.Contains(t, html, `<p>About this map</p>`)
	assert.Contains(t, html, `href="/download"`)
	assert.NotContains(t, html, `href="/password-reset"`)
	assert.Contains(t, html, "Developer")
	assert.Contains(t, html, `class="map-page"`)
}

func TestRegisterKeepsInputAndShowsErrors(t *testing.T) {
	form := validation.Registration{Email: "a@x.com", Name: "<Ada>", Role: 2, EmailUpdates: true}
	errs := validation.Result{}.With("password2", "The two password fields didn't match.")

	html := render(t, testContext(), Register(RegisterData{Form: form, Errors: errs, Roles: model.Roles()}))

	assert.Contains(t, html, `value="a@x.com"`)
	assert.Contains(t, html, `value="&lt;Ada&gt;"`)
	assert.Contains(t, html, `The two password fields didn&#39;t match.`)
	assert.Contains(t, html, `<option value="2" selected>Developer</option>`)
	assert.Contains(t, html, `name="email_updates" value="true" checked`)
	assert.Contains(t, html, `name="csrf_token" value="csrf-123"`)
	assert.NotContains(t, html, `name="password1" value=`)
}

func TestNavigationFollowsSession(t *testing.T) {
	html := render(t, testContext(), PasswordResetDone())
	assert.Contains(t, html, `href="/login"`)

	ctx := ctxkeys.WithUser(testContext(), &model.User{Name: "Ada"})
	html = render(t, ctx, PasswordResetDone())
	assert.Contains(t, html, `action="/logout"`)
	assert.Contains(t, html, ">Ada</a>")
}

func TestPasswordResetConfirm(t *testing.T) {
	html := render(t, testContext(), PasswordResetConfirm(PasswordResetConfirmData{ValidLink: false}))
	assert.Contains(t, html, "Password reset unsuccessful")
	assert.NotContains(t, html, `name="new_password1"`)

	html = render(t, testContext(), PasswordResetConfirm(PasswordResetConfirmData{ValidLink: true}))
	assert.Contains(t, html, `name="new_password1"`)
}

func TestWithoutConfigFallsBackToDefaultName(t *testing.T) {
	html := render(t, context.Background(), NotFound())
	assert.Contains(t, html, "Page not found · User Map")
}

func TestRegisterHandsTileConfigToPicker(t *testing.T) {
	html := render(t, testContext(), Register(RegisterData{Roles: model.Roles()}))

	assert.Contains(t, html, `id="picker-config"`)
	assert.Contains(t, html, `"tilesUrl":"https://tiles.example/{z}/{x}/{y}.png"`)
	assert.Contains(t, html, `<script src="/assets/js/picker.js" nonce="nonce-abc"></script>`)
}

func TestNavigationMarksCurrentPage(t *testing.T) {
	ctx := ctxkeys.WithURLPath(testContext(), "/login")
	html := render(t, ctx, Login(LoginData{Next: "/account"}))

	assert.Contains(t, html, `<a href="/login" aria-current="page">Log in</a>`)
	assert.Contains(t, html, `<a href="/register">Register</a>`)
	assert.Contains(t, html, `name="next" value="/account"`)
	assert.Contains(t, html, "<title>Log in · Test Map</title>")
}

func TestContentRendersMarkup(t *testing.T) {
	html := render(t, testContext(), Content(ContentData{
		Title:       "Data privacy",
		Content:     "<p>We store <em>your</em> location.</p>",
		LastUpdated: "2024-05-01",
	}))

	assert.Contains(t, html, "<h1>Data privacy</h1>")
	assert.Contains(t, html, "<p>We store <em>your</em> location.</p>")
	assert.Contains(t, html, "Last updated 2024-05-01")
}
