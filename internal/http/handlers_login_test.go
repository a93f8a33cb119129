package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeauth/ldapauthd/internal/domain/session"
	apperrors "github.com/edgeauth/ldapauthd/internal/errors"
)

type fakeCredentials struct {
	ok  bool
	err error

	lastUsername string
	lastPassword string
}

func (f *fakeCredentials) Check(_ context.Context, username, password string) (bool, error) {
	f.lastUsername = username
	f.lastPassword = password
	return f.ok, f.err
}

var testClock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newLoginHandlers(creds *fakeCredentials) *LoginHandlers {
	return &LoginHandlers{
		Credentials: creds,
		Codec:       session.NewCodec("test-secret", 3600, time.UTC),
		Cookies: CookiePolicy{
			SessionName:      "authsession",
			Domain:           "example.org",
			RedirectName:     "target",
			FallbackRedirect: "https://portal.example.org/",
		},
		Now: func() time.Time { return testClock },
	}
}

func postLogin(h *LoginHandlers, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.SubmitLogin(rec, r)
	return rec
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestShowLogin_RendersForm(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{})
	rec := httptest.NewRecorder()

	h.ShowLogin(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="username"`)
	assert.Contains(t, rec.Body.String(), `name="password"`)
	assert.NotContains(t, rec.Body.String(), loginFailedMessage)
}

func TestSubmitLogin_SuccessSetsVerifiableSessionCookie(t *testing.T) {
	creds := &fakeCredentials{ok: true}
	h := newLoginHandlers(creds)

	rec := postLogin(h, url.Values{"username": {"jdoe"}, "password": {"hunter2"}})

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "jdoe", creds.lastUsername)
	assert.Equal(t, "hunter2", creds.lastPassword)

	cookie := findCookie(t, rec, "authsession")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "example.org", cookie.Domain)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)

	sess, err := h.Codec.Verify(cookie.Value, testClock)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", sess.Username)
}

func TestSubmitLogin_RedirectCookieConsumed(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{ok: true})

	rec := postLogin(h,
		url.Values{"username": {"jdoe"}, "password": {"hunter2"}},
		&http.Cookie{Name: "target", Value: "https://grafana.example.org/dashboards"},
	)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://grafana.example.org/dashboards", rec.Header().Get("Location"))

	deleted := findCookie(t, rec, "target")
	require.NotNil(t, deleted)
	assert.Equal(t, -1, deleted.MaxAge)
}

func TestSubmitLogin_NoRedirectCookieUsesFallback(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{ok: true})

	rec := postLogin(h, url.Values{"username": {"jdoe"}, "password": {"hunter2"}})

	assert.Equal(t, "https://portal.example.org/", rec.Header().Get("Location"))
}

func TestSubmitLogin_BadCredentialsUniformMessage(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{ok: false})

	rec := postLogin(h, url.Values{"username": {"jdoe"}, "password": {"wrong"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), loginFailedMessage)
	assert.Nil(t, findCookie(t, rec, "authsession"))
}

func TestSubmitLogin_DirectoryErrorLooksLikeBadCredentials(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{ok: false, err: apperrors.DirectoryUnavailable("down")})

	rec := postLogin(h, url.Values{"username": {"jdoe"}, "password": {"hunter2"}})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), loginFailedMessage)
	assert.NotContains(t, rec.Body.String(), "down")
	assert.Nil(t, findCookie(t, rec, "authsession"))
}

func TestLogout_ClearsSessionCookie(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{})
	rec := httptest.NewRecorder()

	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	cookie := findCookie(t, rec, "authsession")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Empty(t, cookie.Value)
}

func TestNoAuth_ShowsUnverifiedUsernameAndTargetHost(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{})

	// Deliberately unsigned token: the page peeks at the name without
	// verifying and must still render.
	r := httptest.NewRequest(http.MethodGet, "/noauth", nil)
	r.AddCookie(&http.Cookie{Name: "authsession", Value: "jdoe:1717243200:not-a-real-mac"})
	r.AddCookie(&http.Cookie{Name: "target", Value: "https://grafana.example.org/dashboards"})
	rec := httptest.NewRecorder()

	h.NoAuth(rec, r)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "jdoe")
	assert.Contains(t, rec.Body.String(), "grafana.example.org")
}

func TestNoAuth_NoCookiesStillRenders(t *testing.T) {
	h := newLoginHandlers(&fakeCredentials{})
	rec := httptest.NewRecorder()

	h.NoAuth(rec, httptest.NewRequest(http.MethodGet, "/noauth", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")
}
