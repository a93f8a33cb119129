package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/edgeauth/ldapauthd/internal/domain/session"
	"github.com/edgeauth/ldapauthd/internal/observability/statsd"
	"github.com/edgeauth/ldapauthd/internal/ports"
	"github.com/edgeauth/ldapauthd/internal/service"
)

// The same message for unknown users and wrong passwords; the form must
// not reveal which one failed.
const loginFailedMessage = "Incorrect username or password."

// CredentialChecker validates a username and password pair.
type CredentialChecker interface {
	Check(ctx context.Context, username, password string) (bool, error)
}

// CookiePolicy describes how session and redirect cookies are written.
type CookiePolicy struct {
	SessionName      string
	Domain           string
	RedirectName     string
	FallbackRedirect string
}

// LoginHandlers serves the interactive login, logout, and denial pages.
type LoginHandlers struct {
	Credentials CredentialChecker
	Codec       *session.Codec
	Cookies     CookiePolicy
	Auditor     *service.Auditor
	Metrics     *statsd.Client
	Logger      *slog.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func (h *LoginHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *LoginHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type loginPageData struct {
	Message string
}

// ShowLogin renders the login form.
// GET /.
func (h *LoginHandlers) ShowLogin(w http.ResponseWriter, r *http.Request) {
	renderPage(w, h.logger(), "login.html", http.StatusOK, loginPageData{})
}

// SubmitLogin validates the submitted credentials. On success it sets
// the signed session cookie and redirects to the destination carried by
// the redirect cookie.
// POST / with form fields username and password.
func (h *LoginHandlers) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderPage(w, h.logger(), "login.html", http.StatusBadRequest,
			loginPageData{Message: loginFailedMessage})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	ok, err := h.Credentials.Check(r.Context(), username, password)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "credential check failed",
			slog.String("username", username),
			slog.Any("error", err))
	}
	if !ok {
		h.recordLogin(username, "failure")
		renderPage(w, h.logger(), "login.html", http.StatusUnauthorized,
			loginPageData{Message: loginFailedMessage})
		return
	}

	token, expiresAt := h.Codec.Issue(username, h.now())
	h.setSessionCookie(w, r, token, expiresAt)
	h.recordLogin(username, "success")

	target := h.consumeRedirect(w, r)
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout deletes the session cookie and sends the user back to the
// login page.
// GET/POST /logout.
func (h *LoginHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, r, h.Cookies.SessionName)
	http.Redirect(w, r, "/", http.StatusFound)
}

type noauthPageData struct {
	Username   string
	TargetHost string
}

// NoAuth renders the denial page. The username comes from the session
// cookie without verification and is for display only; nothing on this
// page grants access.
// GET /noauth.
func (h *LoginHandlers) NoAuth(w http.ResponseWriter, r *http.Request) {
	data := noauthPageData{}
	if cookie, err := r.Cookie(h.Cookies.SessionName); err == nil {
		data.Username = session.PeekUsername(cookie.Value)
	}
	if cookie, err := r.Cookie(h.Cookies.RedirectName); err == nil {
		if u, parseErr := url.Parse(cookie.Value); parseErr == nil {
			data.TargetHost = u.Host
		}
	}
	renderPage(w, h.logger(), "noauth.html", http.StatusForbidden, data)
}

// consumeRedirect reads the post-login destination from the redirect
// cookie, deletes the cookie, and falls back to the configured URL.
// Destinations may be absolute URLs; the portal fronts other hosts.
func (h *LoginHandlers) consumeRedirect(w http.ResponseWriter, r *http.Request) string {
	target := h.Cookies.FallbackRedirect
	if target == "" {
		target = "/"
	}

	cookie, err := r.Cookie(h.Cookies.RedirectName)
	if err != nil {
		return target
	}
	h.clearCookie(w, r, h.Cookies.RedirectName)

	if _, parseErr := url.Parse(cookie.Value); parseErr != nil || cookie.Value == "" {
		return target
	}
	return cookie.Value
}

func (h *LoginHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookies.SessionName,
		Value:    token,
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(expiresAt.Sub(h.now()).Seconds()),
		Expires:  expiresAt,
	})
}

// clearCookie mirrors the attributes used when setting cookies so
// deletion works across browsers.
func (h *LoginHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.Cookies.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
}

func (h *LoginHandlers) recordLogin(username, outcome string) {
	h.Auditor.Record(ports.AuthEvent{
		Kind:     service.AuditKindLogin,
		Username: username,
		Outcome:  outcome,
	})
	h.Metrics.Count("login", 1, map[string]string{"outcome": outcome})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
