package entities

import (
	"strings"

	"reallynicca-backend/domain/core/valueobjects"
)

const (
	// DefaultEntityType is used when the extractor did not tag an entity
	DefaultEntityType = "UNKNOWN"

	// DefaultRelationshipLabel is used when the extractor did not label a relationship
	DefaultRelationshipLabel = "related"
)

// Entity is a node of the knowledge graph as produced by the extraction pipeline.
// Entities are immutable once loaded.
type Entity struct {
	ID    valueobjects.EntityID `json:"id"`
	Label string                `json:"label"`
	Type  string                `json:"type"`
}

// NewEntity creates an entity, applying the default type for blank tags
func NewEntity(id valueobjects.EntityID, label, entityType string) Entity {
	if strings.TrimSpace(entityType) == "" {
		entityType = DefaultEntityType
	}
	return Entity{ID: id, Label: label, Type: entityType}
}

// WithDefaults returns the entity with a blank type replaced by the default
func (e Entity) WithDefaults() Entity {
	return NewEntity(e.ID, e.Label, e.Type)
}

// Relationship is a labelled, undirected connection between two entities.
// Only connectivity matters to gap analysis; labels are carried for callers.
type Relationship struct {
	From  valueobjects.EntityID `json:"from"`
	To    valueobjects.EntityID `json:"to"`
	Label string                `json:"label"`
}

// NewRelationship creates a relationship, applying the default label
func NewRelationship(from, to valueobjects.EntityID, label string) Relationship {
	if strings.TrimSpace(label) == "" {
		label = DefaultRelationshipLabel
	}
	return Relationship{From: from, To: to, Label: label}
}

// IsSelfLoop reports whether both endpoints are the same entity
func (r Relationship) IsSelfLoop() bool {
	return r.From == r.To
}

// WithDefaults returns the relationship with a blank label replaced by the default
func (r Relationship) WithDefaults() Relationship {
	return NewRelationship(r.From, r.To, r.Label)
}
