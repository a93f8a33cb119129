package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgeauth/ldapauthd/config"
	httpx "github.com/edgeauth/ldapauthd/internal/http"
	"github.com/edgeauth/ldapauthd/internal/observability/statsd"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains everything needed to build the HTTP server.
type HTTPServerConfig struct {
	App      config.AppConfig
	Engine   config.EngineConfig
	Services *Services
	Metrics  *statsd.Client
	Logger   *slog.Logger
}

// NewHTTPServer builds the HTTP server with the full middleware chain.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Authz:       cfg.Services.Authz,
		Credentials: cfg.Services.Credentials,
		Codec:       cfg.Services.Codec,
		Cookies: httpx.CookiePolicy{
			SessionName:      cfg.Engine.Session.CookieName,
			Domain:           cfg.Engine.Session.Domain,
			RedirectName:     cfg.Engine.Pages.RedirectCookieName,
			FallbackRedirect: cfg.Engine.Pages.FallbackRedirect,
		},
		StaticDir: cfg.Engine.Pages.StaticDir,
		Auditor:   cfg.Services.Auditor,
		Metrics:   cfg.Metrics,
		Logger:    logger,
	})

	// Order: Recover -> Logging -> Router
	handler := httpx.Logging(logger)(router)
	handler = httpx.Recover(logger)(handler)

	return &http.Server{
		Addr:         cfg.App.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// RunHTTPServer serves until ctx is canceled, then shuts down
// gracefully.
func RunHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
