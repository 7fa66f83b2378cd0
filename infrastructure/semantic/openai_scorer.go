package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
)

// ErrEmptyEmbedding is returned when the provider answers without vectors
var ErrEmptyEmbedding = errors.New("empty embedding response")

// EmbeddingsAPI is the subset of the OpenAI client the scorer uses
type EmbeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config configures the embedding scorer
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	CacheTTL int // seconds; 0 disables caching
}

// OpenAIScorer measures cluster distance as one minus the cosine similarity
// of the embeddings of the space-joined cluster labels
type OpenAIScorer struct {
	client   EmbeddingsAPI
	model    string
	cache    ports.Cache
	cacheTTL int
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewOpenAIClient creates an OpenAI-compatible embeddings client
func NewOpenAIClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// NewOpenAIScorer creates a scorer. cache may be nil.
func NewOpenAIScorer(client EmbeddingsAPI, cfg Config, cache ports.Cache, logger *zap.Logger) *OpenAIScorer {
	s := &OpenAIScorer{
		client:   client,
		model:    cfg.Model,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embeddings",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return s
}

// Distance implements services.SemanticScorer
func (s *OpenAIScorer) Distance(ctx context.Context, a, b []string) (float64, error) {
	textA := strings.Join(a, " ")
	textB := strings.Join(b, " ")
	if strings.TrimSpace(textA) == "" || strings.TrimSpace(textB) == "" {
		return 0, fmt.Errorf("cannot embed empty label set")
	}

	vectors, err := s.embed(ctx, []string{textA, textB})
	if err != nil {
		return 0, err
	}

	similarity, err := cosineSimilarity(vectors[0], vectors[1])
	if err != nil {
		return 0, err
	}
	return clamp01(1 - similarity), nil
}

// embed returns one vector per text, serving repeated texts from the cache
func (s *OpenAIScorer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))

	for i, text := range texts {
		if v, ok := s.cached(ctx, text); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: missing,
			Model: openai.EmbeddingModel(s.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings failed: %w", err)
		}
		if len(resp.Data) != len(missing) {
			return nil, ErrEmptyEmbedding
		}
		return resp.Data, nil
	})
	if err != nil {
		return nil, err
	}

	for _, item := range result.([]openai.Embedding) {
		if item.Index < 0 || item.Index >= len(missing) || len(item.Embedding) == 0 {
			return nil, ErrEmptyEmbedding
		}
		idx := missingIdx[item.Index]
		vectors[idx] = item.Embedding
		s.store(ctx, texts[idx], item.Embedding)
	}
	for _, v := range vectors {
		if v == nil {
			return nil, ErrEmptyEmbedding
		}
	}

	return vectors, nil
}

func (s *OpenAIScorer) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func (s *OpenAIScorer) cached(ctx context.Context, text string) ([]float32, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	value, ok := s.cache.Get(ctx, s.cacheKey(text))
	if !ok {
		return nil, false
	}
	v, ok := value.([]float32)
	return v, ok
}

func (s *OpenAIScorer) store(ctx context.Context, text string, vector []float32) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(text), vector, s.cacheTTL); err != nil {
		s.logger.Debug("Failed to cache embedding", zap.Error(err))
	}
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-length embedding")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
