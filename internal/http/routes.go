// Package httpx provides the HTTP surface: the proxy-facing decision
// endpoint and the user-facing login, logout, and denial pages.
package httpx

import (
	"log/slog"
	"net/http"

	"github.com/edgeauth/ldapauthd/internal/domain/session"
	"github.com/edgeauth/ldapauthd/internal/observability/statsd"
	"github.com/edgeauth/ldapauthd/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Authz       AuthzServiceInterface
	Credentials CredentialChecker
	Codec       *session.Codec
	Cookies     CookiePolicy
	StaticDir   string
	Auditor     *service.Auditor
	Metrics     *statsd.Client
	Logger      *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	decisionHandlers := &DecisionHandlers{
		Authz:      services.Authz,
		CookieName: services.Cookies.SessionName,
		Auditor:    services.Auditor,
		Metrics:    services.Metrics,
		Logger:     services.Logger,
	}
	loginHandlers := &LoginHandlers{
		Credentials: services.Credentials,
		Codec:       services.Codec,
		Cookies:     services.Cookies,
		Auditor:     services.Auditor,
		Metrics:     services.Metrics,
		Logger:      services.Logger,
	}

	mux.HandleFunc("GET /auth", decisionHandlers.Decide)
	mux.HandleFunc("GET /{$}", loginHandlers.ShowLogin)
	mux.HandleFunc("POST /{$}", loginHandlers.SubmitLogin)
	mux.HandleFunc("GET /logout", loginHandlers.Logout)
	mux.HandleFunc("POST /logout", loginHandlers.Logout)
	mux.HandleFunc("GET /noauth", loginHandlers.NoAuth)
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	if services.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(services.StaticDir))
		mux.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	}

	return mux
}
