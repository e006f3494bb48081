package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/configs"
)

func TestConfigInit_WritesTemplate(t *testing.T) {
	// Given: an empty directory
	target := filepath.Join(t.TempDir(), "nested", "config.yaml")

	// When: running config init with a path
	out, err := run(t, "config", "init", target)

	// Then: the template is written
	require.NoError(t, err)
	assert.Contains(t, out, "Created configuration")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigInit_KeepsExistingWithoutForce(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("version: 1\n"), 0o644))

	out, err := run(t, "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, _ := os.ReadFile(target)
	assert.Equal(t, "version: 1\n", string(data))

	_, err = run(t, "config", "init", "--force", target)
	require.NoError(t, err)
	data, _ = os.ReadFile(target)
	assert.Equal(t, configs.ConfigTemplate, string(data))
}

func TestConfigShow(t *testing.T) {
	path, _ := writeTestConfig(t, nil)

	out, err := run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "tick_interval: 1ms")

	out, err = run(t, "config", "show", "--defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "tick_interval: 100ms")

	out, err = run(t, "config", "show", "--json", "--config", path)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestConfigPath_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	out, err := run(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catindex", "config.yaml"), strings.TrimSpace(out))
}

func TestConfigMapping(t *testing.T) {
	// When: printing the built-in mapping
	out, err := run(t, "config", "mapping")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	// Then: it can be saved, commented and loaded back
	file := filepath.Join(t.TempDir(), "mapping.jsonc")
	require.NoError(t, os.WriteFile(file, []byte("// local override\n"+out), 0o644))
	again, err := run(t, "config", "mapping", file)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(again)))
	assert.Contains(t, again, "default_mapping")

	_, err = run(t, "config", "mapping", filepath.Join(t.TempDir(), "absent.jsonc"))
	assert.Error(t, err)
}
