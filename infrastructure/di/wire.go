//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"flowboard/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
	ProvideTracer,
	ProvideRedisClient,
	ProvideSupabaseClient,
	ProvideStorage,
	ProvideBoardStore,
	ProvideChecks,
	ProvideNoticeInbox,
	ProvideEventPublisher,
	ProvideSessionManager,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideTokenVerifier,
	ProvideIPRateLimiter,
	ProvideUserRateLimiter,
	ProvideErrorHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup function
// releases connections opened while wiring.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
