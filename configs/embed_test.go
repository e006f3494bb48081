package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/config"
)

func TestConfigTemplate_LoadsAndMatchesDefaults(t *testing.T) {
	// Given: the embedded template written to disk
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(path)

	// Then: it validates and matches the built-in defaults
	require.NoError(t, err)
	defaults := config.NewConfig()
	assert.Equal(t, defaults.Worker, cfg.Worker)
	assert.Equal(t, defaults.Catalog, cfg.Catalog)
	assert.Equal(t, defaults.Index, cfg.Index)
	assert.Equal(t, defaults.Daemon, cfg.Daemon)
	assert.Equal(t, defaults.Logging, cfg.Logging)
}
