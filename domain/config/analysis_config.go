package config

import (
	"fmt"
	"runtime"
	"time"
)

// AnalysisConfig holds the tunable heuristics of structural gap detection
type AnalysisConfig struct {
	// Gap heuristics
	MinClusterSize        int
	ConnectivityThreshold float64
	MaxGaps               int
	TopBridges            int
	KeywordsPerCluster    int

	// Too-small guard
	MinNodes int
	MinEdges int

	// Semantic scorer boundary
	DefaultSemanticDistance float64
	ScorerTimeout           time.Duration

	// Centrality
	NormalizeCentrality bool
	CentralityWorkers   int

	// Louvain
	Resolution float64
	Epsilon    float64
	MaxPasses  int
	MaxLevels  int

	// Feature flags
	EnableCommunityFallback bool
}

// DefaultAnalysisConfig returns the default analysis configuration
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		MinClusterSize:        3,
		ConnectivityThreshold: 0.2,
		MaxGaps:               10,
		TopBridges:            3,
		KeywordsPerCluster:    5,

		MinNodes: 5,
		MinEdges: 2,

		DefaultSemanticDistance: 0.5,
		ScorerTimeout:           5 * time.Second,

		NormalizeCentrality: true,
		CentralityWorkers:   runtime.GOMAXPROCS(0),

		Resolution: 1.0,
		Epsilon:    1e-7,
		MaxPasses:  100,
		MaxLevels:  32,

		EnableCommunityFallback: true,
	}
}

// ProductionAnalysisConfig returns production-specific configuration
func ProductionAnalysisConfig() *AnalysisConfig {
	config := DefaultAnalysisConfig()

	// Bound remote embedding latency
	config.ScorerTimeout = 2 * time.Second

	return config
}

// DevelopmentAnalysisConfig returns development-specific configuration
func DevelopmentAnalysisConfig() *AnalysisConfig {
	config := DefaultAnalysisConfig()

	config.ScorerTimeout = 10 * time.Second
	config.CentralityWorkers = 2

	return config
}

// LoadAnalysisConfig loads analysis configuration based on environment
func LoadAnalysisConfig(environment string) *AnalysisConfig {
	switch environment {
	case "production":
		return ProductionAnalysisConfig()
	case "development":
		return DevelopmentAnalysisConfig()
	default:
		return DefaultAnalysisConfig()
	}
}

// Validate checks if the configuration is valid
func (c *AnalysisConfig) Validate() error {
	if c.MinClusterSize < 1 {
		return fmt.Errorf("min cluster size must be at least 1, got %d", c.MinClusterSize)
	}
	if c.ConnectivityThreshold <= 0 || c.ConnectivityThreshold > 1 {
		return fmt.Errorf("connectivity threshold must be in (0, 1], got %g", c.ConnectivityThreshold)
	}
	if c.MaxGaps < 1 {
		return fmt.Errorf("max gaps must be at least 1, got %d", c.MaxGaps)
	}
	if c.TopBridges < 0 {
		return fmt.Errorf("top bridges cannot be negative, got %d", c.TopBridges)
	}
	if c.KeywordsPerCluster < 0 {
		return fmt.Errorf("keywords per cluster cannot be negative, got %d", c.KeywordsPerCluster)
	}
	if c.MinNodes < 0 || c.MinEdges < 0 {
		return fmt.Errorf("too-small thresholds cannot be negative")
	}
	if c.DefaultSemanticDistance < 0 || c.DefaultSemanticDistance > 1 {
		return fmt.Errorf("default semantic distance must be in [0, 1], got %g", c.DefaultSemanticDistance)
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("scorer timeout must be positive")
	}
	if c.CentralityWorkers < 1 {
		return fmt.Errorf("centrality workers must be at least 1, got %d", c.CentralityWorkers)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %g", c.Resolution)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon cannot be negative")
	}
	if c.MaxPasses < 1 || c.MaxLevels < 1 {
		return fmt.Errorf("max passes and max levels must be at least 1")
	}
	return nil
}

// Clone returns a copy that can be modified per request
func (c *AnalysisConfig) Clone() *AnalysisConfig {
	clone := *c
	return &clone
}
