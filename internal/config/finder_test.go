package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLocalConfig(t *testing.T) {
	// Create a temporary directory structure
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	err := os.Mkdir(subDir, 0o755)
	assert.NoError(t, err)

	// Create config files
	configYML := filepath.Join(subDir, ".docrender.yml")
	err = os.WriteFile(configYML, []byte("verbose: true"), 0o644)
	assert.NoError(t, err)

	// Test finding in subdir
	result := FindLocalConfig(subDir)
	assert.Equal(t, configYML, result)

	// Test finding in parent
	result = FindLocalConfig(filepath.Join(subDir, "deep"))
	assert.Equal(t, configYML, result)

	// Test not found
	result = FindLocalConfig(tempDir)
	assert.Equal(t, "", result)
}

func TestFindLocalConfig_PrefersFirstExtension(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{".docrender.toml", ".docrender.yaml", ".docrender.json"} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644))
	}

	assert.Equal(t, filepath.Join(dir, ".docrender.yaml"), FindLocalConfig(dir))
}

func TestFindLocalConfig_SkipsDirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")

	// A folder with a config-like name must not stop the walk
	assert.NoError(t, os.MkdirAll(filepath.Join(sub, ".docrender.yml"), 0o755))

	configJSON := filepath.Join(root, ".docrender.json")
	assert.NoError(t, os.WriteFile(configJSON, []byte("{}"), 0o644))

	assert.Equal(t, configJSON, FindLocalConfig(sub))
}

func TestFindGlobalConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	assert.Equal(t, "", FindGlobalConfig())

	dir := filepath.Join(base, "docrender")
	assert.NoError(t, os.MkdirAll(dir, 0o755))

	configTOML := filepath.Join(dir, "config.toml")
	assert.NoError(t, os.WriteFile(configTOML, []byte("verbose = true"), 0o644))
	assert.Equal(t, configTOML, FindGlobalConfig())

	// A local-style name is not a global config
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".docrender.yml"), []byte{}, 0o644))
	assert.Equal(t, configTOML, FindGlobalConfig())
}
