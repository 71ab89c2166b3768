package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("DF_TEST_HOST", "neo4j.internal")

	assert.Equal(t, "url: neo4j.internal", expandEnv("url: ${DF_TEST_HOST:localhost}"))
	assert.Equal(t, "port: 7474", expandEnv("port: ${DF_TEST_UNSET_PORT:7474}"))
	assert.Equal(t, "pw: ", expandEnv("pw: ${DF_TEST_UNSET_PW:}"))
	assert.Equal(t, "x: ${DF_TEST_UNSET}", expandEnv("x: ${DF_TEST_UNSET}"))
}

func TestLoadFromAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	base := `
search:
  default_limit: 25
  fusion:
    weights:
      vector: 0.6
      graph: 0.4
      metadata: 0
graph:
  driver: ${DF_TEST_GRAPH_DRIVER:http}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.test.yaml"), []byte("search:\n  max_limit: 50\n"), 0o600))
	t.Setenv("APP_ENV", "test")
	t.Setenv("DF_TEST_GRAPH_DRIVER", "bolt")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, "bolt", cfg.Graph.Driver)
	assert.Equal(t, 0.6, cfg.Search.Fusion.Weights.Vector)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Result.TTL)
	assert.Equal(t, 0.75, cfg.Search.SimilarThreshold)
	assert.Equal(t, "weaviate", cfg.Vector.Provider)
	assert.Equal(t, 2*time.Second, cfg.Search.Timeouts.Vector)
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := &Config{
		Vector: VectorConfig{Provider: "weaviate"},
		Graph:  GraphConfig{Driver: "http"},
	}
	assert.Error(t, cfg.Validate(), "all-zero weights")

	cfg.Search.Fusion.Weights = FusionWeights{Vector: 1}
	assert.NoError(t, cfg.Validate())

	cfg.Graph.Driver = "grpc"
	assert.Error(t, cfg.Validate())
}
