package di

import (
	"go.uber.org/zap"

	"reallynicca-backend/application/commands/bus"
	"reallynicca-backend/application/ports"
	querybus "reallynicca-backend/application/queries/bus"
	"reallynicca-backend/domain/services"
	"reallynicca-backend/infrastructure/config"
	"reallynicca-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Snapshots  ports.GraphSnapshotRepository
	Publisher  ports.EventPublisher
	Cache      *InMemoryCache
	Engine     *services.GapEngine
	Collector  *observability.Collector
	QueryBus   *querybus.QueryBus
	CommandBus *bus.CommandBus
}
