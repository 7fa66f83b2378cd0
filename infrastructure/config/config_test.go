package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SNAPSHOT_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, SnapshotBackendMemory, cfg.SnapshotBackend)
	assert.Equal(t, 300, cfg.ResultCacheTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.SemanticScorerEnabled())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
environment: production
snapshot_backend: neo4j
neo4j_uri: bolt://graph:7687
result_cache_ttl: 60
analysis:
  min_cluster_size: 4
  connectivity_threshold: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SNAPSHOT_BACKEND", "")
	t.Setenv("RESULT_CACHE_TTL", "120")
	t.Setenv("GAP_MAX_GAPS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, SnapshotBackendNeo4j, cfg.SnapshotBackend)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4jURI)
	assert.Equal(t, 120, cfg.ResultCacheTTL)

	ac, err := cfg.AnalysisConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, ac.MinClusterSize)
	assert.Equal(t, 0.3, ac.ConnectivityThreshold)
	assert.Equal(t, 7, ac.MaxGaps)
	assert.Equal(t, 2*time.Second, ac.ScorerTimeout)
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.SnapshotBackend = "postgres" }, wantErr: true},
		{name: "neo4j without uri", mutate: func(c *Config) { c.SnapshotBackend = SnapshotBackendNeo4j }, wantErr: true},
		{name: "dynamodb without table", mutate: func(c *Config) {
			c.SnapshotBackend = SnapshotBackendDynamoDB
			c.DynamoDBTable = ""
		}, wantErr: true},
		{name: "events without bus", mutate: func(c *Config) {
			c.EnableEvents = true
			c.EventBusName = ""
		}, wantErr: true},
		{name: "negative cache ttl", mutate: func(c *Config) { c.ResultCacheTTL = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_AnalysisConfigRejectsBadOverrides(t *testing.T) {
	cfg := defaults()
	cfg.Analysis.ConnectivityThreshold = 1.5

	_, err := cfg.AnalysisConfig()
	assert.Error(t, err)
}
