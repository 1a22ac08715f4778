package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache_size: 50\nweights:\n  half_life_hours: 24\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.CacheSize)
	assert.Equal(t, DefaultSearchThreshold, cfg.SearchThreshold)

	w := cfg.WeightConfig()
	assert.Equal(t, 24*time.Hour, w.HalfLife)
	assert.Equal(t, 30*24*time.Hour, w.ExpireAfter)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
