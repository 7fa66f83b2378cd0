package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
	pkgerrors "reallynicca-backend/pkg/errors"
	"reallynicca-backend/pkg/fixtures"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) LoadSnapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	args := m.Called(ctx, graphID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.GraphSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *ports.GraphSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (interface{}, bool) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Bool(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

func TestStoreGraphHandler_Handle(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	cache := new(MockCache)

	nodes, edges := fixtures.TwoCliquesWithBridge()
	nodes[0].Type = ""

	repo.On("SaveSnapshot", ctx, mock.MatchedBy(func(s *ports.GraphSnapshot) bool {
		return s.GraphID == "graph-1" &&
			len(s.Entities) == 8 &&
			len(s.Relationships) == 13 &&
			s.Entities[0].Type == entities.DefaultEntityType &&
			s.Relationships[0].Label == "related"
	})).Return(nil)
	cache.On("DeletePrefix", ctx, "gaps:graph-1:").Return(nil)

	handler := NewStoreGraphHandler(repo, cache, zap.NewNop())
	err := handler.Handle(ctx, StoreGraphCommand{GraphID: "graph-1", Entities: nodes, Relationships: edges})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestStoreGraphHandler_RejectsMalformedGraph(t *testing.T) {
	repo := new(MockSnapshotRepository)
	cache := new(MockCache)

	nodes, edges := fixtures.NewSnapshotBuilder().WithClique(1, 2, 3).WithDanglingEdge(1, 9).Build()

	handler := NewStoreGraphHandler(repo, cache, zap.NewNop())
	err := handler.Handle(context.Background(), StoreGraphCommand{GraphID: "graph-1", Entities: nodes, Relationships: edges})
	require.Error(t, err)

	assert.True(t, pkgerrors.IsMalformedInput(err))
	repo.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "DeletePrefix", mock.Anything, mock.Anything)
}

func TestStoreGraphHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		cmd  StoreGraphCommand
	}{
		{name: "missing graph id", cmd: StoreGraphCommand{}},
		{name: "slash in graph id", cmd: StoreGraphCommand{GraphID: "a/b"}},
		{name: "hash in graph id", cmd: StoreGraphCommand{GraphID: "GRAPH#a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockSnapshotRepository)
			err := NewStoreGraphHandler(repo, nil, zap.NewNop()).Handle(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestStoreGraphHandler_SaveFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	cache := new(MockCache)
	repo.On("SaveSnapshot", ctx, mock.Anything).Return(errors.New("table unavailable"))

	nodes, edges := fixtures.Clique(3)
	err := NewStoreGraphHandler(repo, cache, zap.NewNop()).
		Handle(ctx, StoreGraphCommand{GraphID: "graph-1", Entities: nodes, Relationships: edges})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store graph graph-1")
	cache.AssertNotCalled(t, "DeletePrefix", mock.Anything, mock.Anything)
}

func TestStoreGraphHandler_InvalidationFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	cache := new(MockCache)
	repo.On("SaveSnapshot", ctx, mock.Anything).Return(nil)
	cache.On("DeletePrefix", ctx, "gaps:graph-1:").Return(errors.New("cache down"))

	err := NewStoreGraphHandler(repo, cache, zap.NewNop()).Handle(ctx, StoreGraphCommand{
		GraphID:       "graph-1",
		Entities:      []entities.Entity{entities.NewEntity(valueobjects.EntityID(1), "alpha", "CONCEPT")},
		Relationships: []entities.Relationship{},
	})
	require.NoError(t, err)
	cache.AssertExpectations(t)
}
