package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/storekit/storefront-backend/internal/app"
	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/domain"
	"github.com/storekit/storefront-backend/internal/events"
	"github.com/storekit/storefront-backend/internal/health"
	"github.com/storekit/storefront-backend/internal/http/handler"
	"github.com/storekit/storefront-backend/internal/http/router"
	"github.com/storekit/storefront-backend/internal/i18n"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
	"github.com/storekit/storefront-backend/internal/security"
	"github.com/storekit/storefront-backend/internal/service"
)

func ProvideDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "sqlite":
		dsn := cfg.DatabaseDSN
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Customer{}, &domain.Role{}, &domain.RefreshToken{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// ProvideRedis returns nil when Redis is disabled; cache providers fall
// back to in-process stores in that case.
func ProvideRedis(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func ProvideTagCache(client *redis.Client) service.TagCacheStore {
	if client == nil {
		return service.NewInMemoryTagCacheStore()
	}
	return service.NewRedisTagCacheStore(client, "storefront")
}

func ProvideNegativeCache(client *redis.Client) service.NegativeLookupCacheStore {
	if client == nil {
		return service.NewInMemoryNegativeLookupCacheStore()
	}
	return service.NewRedisNegativeLookupCacheStore(client, "storefront")
}

func ProvidePublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.EventsEnabled {
		return events.NewNoopPublisher(), nil
	}
	pub, err := events.NewAMQPPublisher(cfg.EventsAMQPURL, cfg.EventsExchange)
	if err != nil {
		return nil, fmt.Errorf("connect event broker: %w", err)
	}
	logger.Info("event_publisher_connected", "exchange", cfg.EventsExchange)
	return pub, nil
}

func ProvideBreachChecker(cfg *config.Config) service.BreachChecker {
	if !cfg.BreachCheckEnabled {
		return service.NewNoopBreachChecker()
	}
	return service.NewRangeBreachChecker(cfg.BreachCheckBaseURL)
}

func ProvideTokenCodec(cfg *config.Config) *security.TokenCodec {
	return security.NewTokenCodec(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.AccessTokenTTL)
}

func ProvidePasswordHasher() *security.PasswordHasher {
	return security.NewPasswordHasher(security.DefaultArgon2Params)
}

func ProvideTokenService(cfg *config.Config, codec *security.TokenCodec, tokens repository.RefreshTokenRepository, publisher events.Publisher) *service.TokenService {
	return service.NewTokenService(codec, tokens, publisher, cfg.RefreshTokenPepper, cfg.RefreshTokenTTL)
}

func ProvideAuthService(
	verifier *service.CredentialVerifier,
	tokenSvc *service.TokenService,
	customers repository.CustomerRepository,
	roles repository.RoleRepository,
	hasher *security.PasswordHasher,
	breach service.BreachChecker,
	publisher events.Publisher,
) *service.AuthService {
	return service.NewAuthService(verifier, tokenSvc, customers, roles, hasher, breach, publisher)
}

func ProvideTagResolver(cfg *config.Config, cache service.TagCacheStore, negatives service.NegativeLookupCacheStore, auth *service.AuthService) service.TagResolver {
	return service.NewCachedTagResolver(cache, negatives, auth, cfg.TagCacheTTL)
}

func ProvideSessionService(cfg *config.Config, tokens repository.RefreshTokenRepository) *service.SessionService {
	return service.NewSessionService(tokens, cfg.RefreshTokenPepper)
}

func ProvideMessages(cfg *config.Config) (*i18n.Resolver, error) {
	return i18n.NewResolver(cfg.DefaultLocale)
}

func ProvideSweeper(cfg *config.Config, tokens repository.RefreshTokenRepository, logger *slog.Logger) *service.Sweeper {
	return service.NewSweeper(tokens, cfg.SweepInterval, logger)
}

func ProvideReadiness(db *gorm.DB, client *redis.Client) *health.ProbeRunner {
	runner := health.NewProbeRunner(2*time.Second, 5*time.Second)
	runner.Register(health.NewGormChecker(db))
	if client != nil {
		runner.Register(health.NewRedisChecker(client))
	}
	return runner
}

func ProvideRouter(
	cfg *config.Config,
	logger *slog.Logger,
	codec *security.TokenCodec,
	resolver service.TagResolver,
	auth *service.AuthService,
	customers repository.CustomerRepository,
	sessions *service.SessionService,
	messages *i18n.Resolver,
	readiness *health.ProbeRunner,
) http.Handler {
	return router.New(router.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Codec:     codec,
		Resolver:  resolver,
		Auth:      handler.NewAuthHandler(auth, messages),
		Account:   handler.NewAccountHandler(customers, sessions, messages),
		Messages:  messages,
		Readiness: readiness,
	})
}

func ProvideServer(cfg *config.Config, root http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// SeedRoles installs the closed tag catalog on startup. Safe to run on
// every boot.
func SeedRoles(roles repository.RoleRepository) error {
	return roles.Seed([]domain.Role{
		{Name: domain.TagCustomer},
		{Name: domain.TagAdmin},
		{Name: domain.TagSupport},
	})
}

func ProvideCredentialVerifier(customers repository.CustomerRepository, hasher *security.PasswordHasher) *service.CredentialVerifier {
	return service.NewCredentialVerifier(customers, hasher)
}

func ProvideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	sweeper *service.Sweeper,
	publisher events.Publisher,
	readiness *health.ProbeRunner,
	roles repository.RoleRepository,
	client *redis.Client,
) (*app.App, error) {
	if err := SeedRoles(roles); err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}
	stop := func() {
		if client != nil {
			_ = client.Close()
		}
	}
	return app.New(cfg, logger, server, runtime, sweeper, publisher, readiness, stop), nil
}
