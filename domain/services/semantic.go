package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// WarningSemanticScorerUnavailable marks a run where at least one gap used the default semantic distance
const WarningSemanticScorerUnavailable = "SEMANTIC_SCORER_UNAVAILABLE"

// SemanticScorer measures how unrelated two sets of cluster labels are,
// returning a distance in [0, 1]
type SemanticScorer interface {
	Distance(ctx context.Context, a, b []string) (float64, error)
}

// SemanticScorerFunc adapts a plain function to SemanticScorer
type SemanticScorerFunc func(ctx context.Context, a, b []string) (float64, error)

// Distance calls f
func (f SemanticScorerFunc) Distance(ctx context.Context, a, b []string) (float64, error) {
	return f(ctx, a, b)
}

// ConstantScorer always returns the same distance
type ConstantScorer float64

// Distance returns the constant
func (c ConstantScorer) Distance(context.Context, []string, []string) (float64, error) {
	return float64(c), nil
}

// GuardedScorer calls an injected scorer behind a timeout and substitutes a
// default distance when the scorer is missing, fails, panics or times out.
// It never returns an error.
type GuardedScorer struct {
	inner           SemanticScorer
	defaultDistance float64
	timeout         time.Duration
	logger          *zap.Logger
}

// NewGuardedScorer wraps inner. A nil inner always yields the default.
func NewGuardedScorer(inner SemanticScorer, defaultDistance float64, timeout time.Duration, logger *zap.Logger) *GuardedScorer {
	return &GuardedScorer{
		inner:           inner,
		defaultDistance: defaultDistance,
		timeout:         timeout,
		logger:          logger,
	}
}

type scoreResult struct {
	value float64
	err   error
}

// Distance returns the semantic distance and whether the default was substituted
func (s *GuardedScorer) Distance(ctx context.Context, a, b []string) (float64, bool) {
	if s.inner == nil {
		return s.defaultDistance, true
	}
	if len(a) == 0 || len(b) == 0 {
		return s.defaultDistance, false
	}

	callCtx := ctx
	cancel := func() {}
	if s.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	results := make(chan scoreResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- scoreResult{err: fmt.Errorf("semantic scorer panicked: %v", r)}
			}
		}()
		value, err := s.inner.Distance(callCtx, a, b)
		results <- scoreResult{value: value, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			s.logger.Warn("Semantic scorer failed, using default distance",
				zap.Error(res.err),
				zap.Float64("defaultDistance", s.defaultDistance),
			)
			return s.defaultDistance, true
		}
		if math.IsNaN(res.value) {
			s.logger.Warn("Semantic scorer returned NaN, using default distance")
			return s.defaultDistance, true
		}
		return clamp01(res.value), false
	case <-callCtx.Done():
		s.logger.Warn("Semantic scorer timed out, using default distance",
			zap.Duration("timeout", s.timeout),
			zap.Float64("defaultDistance", s.defaultDistance),
		)
		return s.defaultDistance, true
	}
}
