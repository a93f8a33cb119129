package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/edgeauth/ldapauthd/config"
	"github.com/edgeauth/ldapauthd/internal/adapters/groupstore"
	ldapadapter "github.com/edgeauth/ldapauthd/internal/adapters/ldap"
	"github.com/edgeauth/ldapauthd/internal/data"
	"github.com/edgeauth/ldapauthd/internal/domain/session"
	"github.com/edgeauth/ldapauthd/internal/ports"
	"github.com/edgeauth/ldapauthd/internal/service"
)

// The redis backstop outlives the in-process TTL so entries eventually
// vanish even if no request refreshes them.
const redisBackstopFactor = 4

// Services holds the wired service graph.
type Services struct {
	Codec       *session.Codec
	Credentials *service.CredentialService
	Groups      *service.GroupService
	Authz       *service.AuthzService
	Auditor     *service.Auditor
}

// ServiceDeps carries the external dependencies services are built on.
type ServiceDeps struct {
	Engine config.EngineConfig
	// Redis is optional; when nil the group cache is process-local.
	Redis redis.UniversalClient
	// AuditPool is optional; when nil audit events are not persisted.
	AuditPool *pgxpool.Pool
	Logger    *slog.Logger
}

// NewServices builds the service graph from configuration.
func NewServices(deps ServiceDeps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	directory := ldapadapter.NewClient(ldapadapter.Config{
		URL:          deps.Engine.LDAP.URL,
		BindDN:       deps.Engine.LDAP.BindDN,
		BindPassword: deps.Engine.LDAP.BindPassword,
		UserBaseDN:   deps.Engine.LDAP.UserBaseDN,
		UserAttr:     deps.Engine.LDAP.UserAttr,
		PasswordAttr: deps.Engine.LDAP.PasswordAttr,
		GroupBaseDN:  deps.Engine.LDAP.GroupBaseDN,
		GroupAttr:    deps.Engine.LDAP.GroupAttr,
		MemberAttr:   deps.Engine.LDAP.MemberAttr,
		Timeout:      time.Duration(deps.Engine.LDAP.TimeoutSeconds) * time.Second,
	})

	ttl := time.Duration(deps.Engine.Cache.GroupTTLSeconds) * time.Second
	var store ports.GroupStore
	if deps.Redis != nil {
		store = groupstore.NewRedis(deps.Redis, ttl*redisBackstopFactor)
	} else {
		store = groupstore.NewMemory()
	}

	codec := session.NewCodec(deps.Engine.Session.Secret, deps.Engine.Session.MaxAge, nil)

	credentials := service.NewCredentialService(service.CredentialServiceOptions{
		Directory: directory,
		Logger:    logger,
	})
	groups := service.NewGroupService(service.GroupServiceOptions{
		Directory: directory,
		Store:     store,
		TTL:       ttl,
		Logger:    logger,
	})
	authz := service.NewAuthzService(service.AuthzServiceOptions{
		Codec:         codec,
		Groups:        groups,
		ExemptIngress: deps.Engine.Ingress.Exempt,
		Logger:        logger,
	})

	var sink ports.AuthEventSink
	if deps.AuditPool != nil {
		sink = data.NewAuthEventRepo(deps.AuditPool)
	}

	return &Services{
		Codec:       codec,
		Credentials: credentials,
		Groups:      groups,
		Authz:       authz,
		Auditor:     service.NewAuditor(sink, logger),
	}
}

// ConnectRedis connects the optional shared group cache. Returns nil
// when no redis address is configured.
func ConnectRedis(ctx context.Context, cfg config.CacheSection) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// ConnectAuditDB connects the optional audit database and ensures its
// schema. Returns nil when no database URL is configured.
func ConnectAuditDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if err := data.NewAuthEventRepo(pool).EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
