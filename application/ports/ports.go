package ports

import (
	"context"

	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/events"
)

// GraphSnapshot is the extracted entity graph of one stored document set
type GraphSnapshot struct {
	GraphID       string                  `json:"graph_id"`
	Entities      []entities.Entity       `json:"nodes"`
	Relationships []entities.Relationship `json:"edges"`
}

// GraphSnapshotRepository loads stored graphs for analysis.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type GraphSnapshotRepository interface {
	// LoadSnapshot returns every entity and relationship of a graph.
	// A graph that does not exist yields a NotFound error.
	LoadSnapshot(ctx context.Context, graphID string) (*GraphSnapshot, error)

	// SaveSnapshot stores a graph, replacing any previous version
	SaveSnapshot(ctx context.Context, snapshot *GraphSnapshot) error
}

// EventPublisher publishes domain events to external systems
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching analysis results
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl int) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}
