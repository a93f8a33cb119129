package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgeauth/ldapauthd/config"
	"github.com/edgeauth/ldapauthd/internal/bootstrap"
	"github.com/edgeauth/ldapauthd/internal/observability/statsd"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	engine, err := config.LoadEngineConfig(cfg.EngineConfigFile)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting ldapauthd",
		"addr", cfg.HTTP.Addr,
		"ldap_url", engine.LDAP.URL,
		"engine_config", cfg.EngineConfigFile)

	redisClient, err := bootstrap.ConnectRedis(ctx, engine.Cache)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Address: cfg.Metrics.Addr,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := metrics.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close statsd failed", "error", cerr)
		}
	}()

	auditPool, err := bootstrap.ConnectAuditDB(ctx, cfg.Audit.DatabaseURL)
	if err != nil {
		return err
	}
	if auditPool != nil {
		defer auditPool.Close()
	}

	services := bootstrap.NewServices(bootstrap.ServiceDeps{
		Engine:    engine,
		Redis:     redisClient,
		AuditPool: auditPool,
		Logger:    logger,
	})

	server := bootstrap.NewHTTPServer(bootstrap.HTTPServerConfig{
		App:      cfg,
		Engine:   engine,
		Services: services,
		Metrics:  metrics,
		Logger:   logger,
	})

	return bootstrap.RunHTTPServer(ctx, server, logger)
}
