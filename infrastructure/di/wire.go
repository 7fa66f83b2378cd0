//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideAnalysisConfig,
	ProvideInMemoryCache,
	wire.Bind(new(ports.Cache), new(*InMemoryCache)),
	ProvideSnapshotRepository,
	ProvideEventPublisher,
	ProvideSemanticScorer,
	ProvideGapEngine,
	ProvideCollector,
	ProvideQueryBus,
	ProvideCommandBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
