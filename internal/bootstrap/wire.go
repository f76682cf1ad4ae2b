//go:build wireinject

package bootstrap

import (
	"context"
	"log/slog"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/storekit/storefront-backend/internal/app"
	"github.com/storekit/storefront-backend/internal/config"
	"github.com/storekit/storefront-backend/internal/observability"
	"github.com/storekit/storefront-backend/internal/repository"
)

// InitializeApp assembles the full service graph. Regenerate wire_gen.go
// with `wire ./internal/bootstrap` after changing providers.
func InitializeApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, logProvider *sdklog.LoggerProvider) (*app.App, error) {
	wire.Build(
		observability.InitRuntime,
		ProvideDB,
		ProvideRedis,
		ProvideTagCache,
		ProvideNegativeCache,
		ProvidePublisher,
		ProvideBreachChecker,
		ProvideTokenCodec,
		ProvidePasswordHasher,
		repository.NewCustomerRepository,
		repository.NewRoleRepository,
		repository.NewRefreshTokenRepository,
		ProvideCredentialVerifier,
		ProvideTokenService,
		ProvideAuthService,
		ProvideTagResolver,
		ProvideSessionService,
		ProvideMessages,
		ProvideSweeper,
		ProvideReadiness,
		ProvideRouter,
		ProvideServer,
		ProvideApp,
	)
	return nil, nil
}
