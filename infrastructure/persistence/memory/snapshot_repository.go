package memory

import (
	"context"
	"sort"
	"sync"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/domain/core/entities"
	pkgerrors "reallynicca-backend/pkg/errors"
)

// SnapshotRepository keeps graph snapshots in process memory
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*ports.GraphSnapshot
}

// NewSnapshotRepository creates an empty in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string]*ports.GraphSnapshot),
	}
}

// LoadSnapshot returns a copy of the stored graph
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, exists := r.snapshots[graphID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("graph " + graphID)
	}
	return cloneSnapshot(snapshot), nil
}

// SaveSnapshot stores a copy of the graph, replacing any previous version
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *ports.GraphSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil || snapshot.GraphID == "" {
		return pkgerrors.NewValidationError("snapshot requires a graph id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshot.GraphID] = cloneSnapshot(snapshot)
	return nil
}

// GraphIDs lists the stored graphs in sorted order
func (r *SnapshotRepository) GraphIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneSnapshot(s *ports.GraphSnapshot) *ports.GraphSnapshot {
	return &ports.GraphSnapshot{
		GraphID:       s.GraphID,
		Entities:      append([]entities.Entity(nil), s.Entities...),
		Relationships: append([]entities.Relationship(nil), s.Relationships...),
	}
}
