package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupQuery struct {
	Key     string
	Invalid bool
}

func (q lookupQuery) Validate() error {
	if q.Invalid {
		return errors.New("invalid lookup")
	}
	return nil
}

func (q lookupQuery) CacheKey() string { return "lookup:" + q.Key }

type plainQuery struct{}

func (plainQuery) Validate() error { return nil }

type memoryCache struct {
	mu    sync.Mutex
	items map[string]interface{}
	ttls  map[string]int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string]interface{}), ttls: make(map[string]int)}
}

func (c *memoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	c.ttls[key] = ttl
	return nil
}

type countingMetrics struct {
	counts map[string]int
	timers int
}

func (m *countingMetrics) StartTimer(metric, label string) Timer {
	m.timers++
	return noopTimer{}
}

func (m *countingMetrics) Increment(metric, label string) {
	m.counts[metric+"/"+label]++
}

type noopTimer struct{}

func (noopTimer) Stop() {}

func TestQueryBus_AskDispatchesByType(t *testing.T) {
	b := NewQueryBus()
	require.NoError(t, b.Register(lookupQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return "value-" + q.(lookupQuery).Key, nil
	})))

	result, err := b.Ask(context.Background(), lookupQuery{Key: "a"})
	require.NoError(t, err)
	assert.Equal(t, "value-a", result)

	_, err = b.Ask(context.Background(), plainQuery{})
	assert.ErrorContains(t, err, "no handler registered")
}

func TestQueryBus_DuplicateRegistration(t *testing.T) {
	b := NewQueryBus()
	handler := QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) { return nil, nil })

	require.NoError(t, b.Register(plainQuery{}, handler))
	assert.Error(t, b.Register(plainQuery{}, handler))
}

func TestQueryBus_ValidationAndHandlerErrors(t *testing.T) {
	sentinel := errors.New("boom")
	b := NewQueryBus()
	require.NoError(t, b.Register(lookupQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return nil, sentinel
	})))

	_, err := b.Ask(context.Background(), lookupQuery{Invalid: true})
	assert.ErrorContains(t, err, "query validation failed")

	_, err = b.Ask(context.Background(), lookupQuery{Key: "a"})
	assert.ErrorIs(t, err, sentinel)
}

func TestCachingMiddleware(t *testing.T) {
	calls := 0
	inner := QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		calls++
		return calls, nil
	})

	t.Run("caches cacheable queries", func(t *testing.T) {
		calls = 0
		cache := newMemoryCache()
		handler := NewCachingMiddleware(cache, 60).Wrap(inner)

		first, err := handler.Handle(context.Background(), lookupQuery{Key: "a"})
		require.NoError(t, err)
		second, err := handler.Handle(context.Background(), lookupQuery{Key: "a"})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 60, cache.ttls["lookup:a"])
	})

	t.Run("skips queries without a cache key", func(t *testing.T) {
		calls = 0
		handler := NewCachingMiddleware(newMemoryCache(), 60).Wrap(inner)

		_, _ = handler.Handle(context.Background(), plainQuery{})
		_, _ = handler.Handle(context.Background(), plainQuery{})
		assert.Equal(t, 2, calls)
	})

	t.Run("disabled by zero ttl", func(t *testing.T) {
		calls = 0
		handler := NewCachingMiddleware(newMemoryCache(), 0).Wrap(inner)

		_, _ = handler.Handle(context.Background(), lookupQuery{Key: "a"})
		_, _ = handler.Handle(context.Background(), lookupQuery{Key: "a"})
		assert.Equal(t, 2, calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		cache := newMemoryCache()
		failing := QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
			return nil, errors.New("boom")
		})
		_, err := NewCachingMiddleware(cache, 60).Wrap(failing).Handle(context.Background(), lookupQuery{Key: "a"})
		require.Error(t, err)
		assert.Empty(t, cache.items)
	})
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := &countingMetrics{counts: make(map[string]int)}
	ok := NewMetricsMiddleware(metrics).Wrap(QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return "ok", nil
	}))
	failing := NewMetricsMiddleware(metrics).Wrap(QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return nil, errors.New("boom")
	}))

	_, _ = ok.Handle(context.Background(), plainQuery{})
	_, _ = failing.Handle(context.Background(), plainQuery{})

	assert.Equal(t, 2, metrics.counts["query_count/plainQuery"])
	assert.Equal(t, 1, metrics.counts["query_success/plainQuery"])
	assert.Equal(t, 1, metrics.counts["query_errors/plainQuery"])
	assert.Equal(t, 2, metrics.timers)
}
