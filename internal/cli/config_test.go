package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	doc := "engine = \"vale-custom\"\ntimeout_seconds = 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(doc), 0o644))

	cfg, err := loadFileConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "vale-custom", cfg.Engine)
	assert.Equal(t, 10, cfg.TimeoutSeconds)
}

func TestLoadFileConfigUpwardSearch(t *testing.T) {
	root := t.TempDir()
	doc := "engine = \"vale-custom\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, configFileName), []byte(doc), 0o644))

	nested := filepath.Join(root, "docs", "scenarios")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := loadFileConfig(nested)
	require.NoError(t, err)
	assert.Equal(t, "vale-custom", cfg.Engine)
}

func TestLoadFileConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("engine = [broken\n"), 0o644))

	_, err := loadFileConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse TOML")
}

func TestFindConfigFileAbsent(t *testing.T) {
	// A directory tree with no config file anywhere up to the root.
	_, found, err := findConfigFile(t.TempDir())
	require.NoError(t, err)
	assert.False(t, found)
}
