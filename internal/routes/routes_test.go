package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/usermap/internal/app"
	"github.com/templui/usermap/internal/config"
	"github.com/templui/usermap/internal/db/dbtest"
	"github.com/templui/usermap/internal/mail/mailtest"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/service"
	"golang.org/x/crypto/bcrypt"
)

const (
	password  = "correct horse battery"
	csrfToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 43 chars, the encoded length of 32 bytes
)

type env struct {
	handler http.Handler
	mailer  *mailtest.Recorder
	users   repository.UserRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := &config.Config{
		AppName:                  "User Map",
		AppEnv:                   "test",
		AppURL:                   "http://localhost:8090",
		SupportEmail:             "help@example.com",
		JWTSecret:                "test-secret-test-secret-test-secret",
		JWTExpiry:                time.Hour,
		TokenPasswordResetExpiry: 72 * time.Hour,
		BcryptCost:               bcrypt.MinCost,
		DefaultActive:            true,
		LeafletTilesURL:          "https://tiles.example/{z}/{x}/{y}.png",
	}

	repo := repository.NewUserRepository(dbtest.New(t))
	mailer := &mailtest.Recorder{}
	lifecycle := service.NewLifecycle(repo, cfg.DefaultActive)
	emails := service.NewEmailService(mailer, cfg.AppURL, cfg.AppName)
	auth := service.NewAuthService(repo, lifecycle, emails, service.AuthOptions{
		AppName:       cfg.AppName,
		JWTSecret:     cfg.JWTSecret,
		JWTExpiry:     cfg.JWTExpiry,
		ResetExpiry:   cfg.TokenPasswordResetExpiry,
		BcryptCost:    cfg.BcryptCost,
		DefaultActive: cfg.DefaultActive,
	})

	content := service.NewContentService(contentFixture(), false)
	require.NoError(t, content.LoadPages())

	return &env{
		handler: SetupRoutes(&app.App{
			Cfg:            cfg,
			AuthService:    auth,
			UserService:    service.NewUserService(repo, lifecycle, nil),
			EmailService:   emails,
			ContentService: content,
			Lifecycle:      lifecycle,
		}),
		mailer: mailer,
		users:  repo,
	}
}

// client keeps cookies between requests like a browser would.
type client struct {
	t       *testing.T
	env     *env
	cookies map[string]*http.Cookie
	n       int
	// peer pins the TCP peer address; empty gives every request its own
	peer    string
	headers [][2]string
}

func (e *env) client(t *testing.T) *client {
	return &client{t: t, env: e, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()

	var body io.Reader
	if form != nil {
		form.Set("csrf_token", csrfToken)
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	// a fresh address per request keeps the auth rate limiter out of the way
	c.n++
	req.RemoteAddr = c.peer
	if c.peer == "" {
		req.RemoteAddr = fmt.Sprintf("10.0.%d.%d:40000", c.n/250, c.n%250)
	}
	for _, v := range c.headers {
		req.Header.Set(v[0], v[1])
	}
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: csrfToken})
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.env.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "csrf_token" {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil)
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, target, form)
}

func registration(email string, role int) url.Values {
	return url.Values{
		"email":     {email},
		"password1": {password},
		"password2": {password},
		"name":      {"Ada Lovelace"},
		"website":   {"https://example.org"},
		"user_role": {fmt.Sprint(role)},
		"latitude":  {"51.5"},
		"longitude": {"-0.12"},
	}
}

// linkPath returns the path of the first link in the last mail of kind.
func (e *env) linkPath(t *testing.T, kind, prefix string) string {
	t.Helper()
	sent := e.mailer.OfKind(kind)
	require.NotEmpty(t, sent, "no %s mail", kind)
	for _, line := range strings.Split(sent[len(sent)-1].Text, "\n") {
		u, err := url.Parse(strings.TrimSpace(line))
		if err == nil && strings.HasPrefix(u.Path, prefix) {
			return u.Path
		}
	}
	t.Fatalf("no %s link in %s mail", prefix, kind)
	return ""
}

func (e *env) registerConfirmed(t *testing.T, c *client, email string, role int) {
	t.Helper()
	rec := c.post("/register", registration(email, role))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.get(e.linkPath(t, service.EmailConfirmation, "/confirm/"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterConfirmLogin(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	rec := c.post("/register", registration("ada@x.com", 1))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@x.com")

	// not confirmed yet
	rec = c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {password}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please confirm your registration email first.")

	confirm := e.linkPath(t, service.EmailConfirmation, "/confirm/")
	rec = c.get(confirm)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registration confirmed")
	assert.Len(t, e.mailer.OfKind(service.EmailWelcome), 1)

	rec = c.get(confirm)
	assert.Contains(t, rec.Body.String(), "Already confirmed")
	assert.Len(t, e.mailer.OfKind(service.EmailWelcome), 1)

	rec = c.post("/login", url.Values{"email": {"ADA@x.com"}, "password": {password}, "next": {"/account"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account", rec.Header().Get("Location"))
	require.Contains(t, c.cookies, service.AuthCookieName)

	rec = c.get("/account")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="ada@x.com"`)

	// guests only
	rec = c.get("/login")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = c.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, c.cookies, service.AuthCookieName)

	rec = c.get("/account")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Faccount", rec.Header().Get("Location"))
}

func TestRegisterShowsFieldErrors(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	form := registration("ada@x.com", 1)
	form.Set("password2", "something else entirely")
	form.Set("latitude", "north")

	rec := c.post("/register", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "didn&#39;t match")
	assert.Contains(t, body, "Enter a number.")
	assert.Empty(t, e.mailer.Sent())

	e.registerConfirmed(t, c, "ada@x.com", 1)
	rec = c.post("/register", registration("Ada@X.com", 2))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "A user with that email already exists.")
}

func TestRegisterKeepsAccountWhenMailFails(t *testing.T) {
	e := newEnv(t)
	e.mailer.Err = fmt.Errorf("smtp down")
	c := e.client(t)

	rec := c.post("/register", registration("ada@x.com", 0))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "help@example.com")

	_, err := e.users.ByEmail(context.Background(), "ada@x.com")
	assert.NoError(t, err)
}

func TestConfirmInvalidLink(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	rec := c.get("/confirm/not-an-id/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid confirmation link")
}

func TestLoginRejectsForeignNext(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "ada@x.com", 0)

	rec := c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {password}, "next": {"//evil.example/"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestLoginBadCredentials(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "ada@x.com", 0)

	rec := c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {"wrong password here"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter a correct email and password.")
	assert.NotContains(t, c.cookies, service.AuthCookieName)
}

func TestLoginRateLimitedPerPeer(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	c.peer = "198.51.100.20:40000"

	var codes []int
	for i := 0; i < 7; i++ {
		c.headers = [][2]string{
			{"X-Forwarded-For", fmt.Sprintf("172.16.0.%d", i+1)},
			{"X-Real-IP", fmt.Sprintf("172.17.0.%d", i+1)},
		}
		rec := c.post("/login", url.Values{"email": {"nobody@x.com"}, "password": {"wrong password here"}})
		codes = append(codes, rec.Code)
	}

	for _, code := range codes[:5] {
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[5])
	assert.Equal(t, http.StatusTooManyRequests, codes[6])

	// Other clients are unaffected.
	rec := e.client(t).post("/login", url.Values{"email": {"nobody@x.com"}, "password": {"wrong password here"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsersAPI(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "trainer@x.com", 1)
	c.post("/register", registration("pending@x.com", 1))

	rec := c.get("/api/users?user_role=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "confirmation")

	var body struct {
		Users []struct {
			Name      string  `json:"name"`
			Role      int     `json:"role"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 1)
	assert.Equal(t, "Ada Lovelace", body.Users[0].Name)
	assert.Equal(t, 1, body.Users[0].Role)
	assert.InDelta(t, 51.5, body.Users[0].Latitude, 1e-9)

	rec = c.get("/api/users?user_role=2")
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())

	for _, q := range []string{"", "?user_role=", "?user_role=9", "?user_role=x"} {
		rec = c.get("/api/users" + q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, rec.Body.String(), `"error"`, q)
	}
}

func TestDownloadStreamsCSV(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "dev@x.com", 2)

	rec := c.get("/download")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="users.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "name,role,website,latitude,longitude\nAda Lovelace,Developer,https://example.org,51.5,-0.12\n", rec.Body.String())
}

func TestPasswordResetFlow(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "ada@x.com", 0)

	// unknown addresses look the same
	rec := c.post("/password-reset", url.Values{"email": {"nobody@x.com"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/password-reset/done", rec.Header().Get("Location"))
	assert.Empty(t, e.mailer.OfKind(service.EmailPasswordReset))

	rec = c.post("/password-reset", url.Values{"email": {"ada@x.com"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	link := e.linkPath(t, service.EmailPasswordReset, "/password-reset/")

	rec = c.get(link)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="new_password1"`)

	rec = c.post(link, url.Values{"new_password1": {"short"}, "new_password2": {"short"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least 12 characters")

	newPassword := "a much better passphrase"
	rec = c.post(link, url.Values{"new_password1": {newPassword}, "new_password2": {newPassword}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/password-reset/complete", rec.Header().Get("Location"))

	// the link is spent once the password changed
	rec = c.get(link)
	assert.Contains(t, rec.Body.String(), "Password reset unsuccessful")

	rec = c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {password}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {newPassword}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestAccountUpdate(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)
	e.registerConfirmed(t, c, "ada@x.com", 1)
	rec := c.post("/login", url.Values{"email": {"ada@x.com"}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = c.post("/account", url.Values{
		"action":    {"change_basic_info"},
		"email":     {"ada@x.com"},
		"name":      {"Countess Lovelace"},
		"website":   {""},
		"latitude":  {"48.2"},
		"longitude": {"16.37"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account?updated=basic#basic-information", rec.Header().Get("Location"))

	rec = c.get("/account?updated=basic")
	assert.Contains(t, rec.Body.String(), "Your information has been updated.")
	assert.Contains(t, rec.Body.String(), `value="Countess Lovelace"`)

	rec = c.post("/account", url.Values{
		"action":        {"change_password"},
		"old_password":  {"not my password"},
		"new_password1": {"a much better passphrase"},
		"new_password2": {"a much better passphrase"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your old password was entered incorrectly.")

	before := c.cookies[service.AuthCookieName].Value
	rec = c.post("/account", url.Values{
		"action":        {"change_password"},
		"old_password":  {password},
		"new_password1": {"a much better passphrase"},
		"new_password2": {"a much better passphrase"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account?updated=password#security", rec.Header().Get("Location"))
	assert.NotEqual(t, before, c.cookies[service.AuthCookieName].Value)
	assert.Len(t, e.mailer.OfKind(service.EmailPasswordChanged), 1)

	// the reissued session still works
	rec = c.get("/account")
	assert.Equal(t, http.StatusOK, rec.Code)

	// an old session cookie does not
	stale := e.client(t)
	stale.cookies[service.AuthCookieName] = &http.Cookie{Name: service.AuthCookieName, Value: before}
	rec = stale.get("/account")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestCSRFRequiredOnPost(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40x.com&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPagesAndFallbacks(t *testing.T) {
	e := newEnv(t)
	c := e.client(t)

	rec := c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "About the map")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = c.get("/pages/data-privacy")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data privacy")

	rec = c.get("/pages/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.get("/robots.txt")
	assert.Contains(t, rec.Body.String(), "Sitemap: http://localhost:8090/sitemap.xml")

	rec = c.get("/sitemap.xml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://localhost:8090/pages/data-privacy")

	rec = c.get("/assets/js/map.js")
	assert.Equal(t, http.StatusOK, rec.Code)
}
