package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	viper.Reset()
	loader := NewLoader()
	loader.setupViperDefaults()

	assert.Equal(t, "sqlite", viper.GetString("store.driver"))
	assert.Equal(t, "pandoc", viper.GetString("tools.pandoc"))
	assert.Equal(t, 2*time.Minute, viper.GetDuration("tools.timeout"))
	assert.Equal(t, "pandoc", viper.GetString("markdown.engine"))
	assert.Equal(t, true, viper.GetBool("pdf.validate"))
	assert.Equal(t, false, viper.GetBool("verbose"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	tempDir := t.TempDir()
	configDir := filepath.Join(tempDir, "docrender")
	require.NoError(t, os.Mkdir(configDir, 0o755))

	t.Run("loads yaml config", func(t *testing.T) {
		viper.Reset()
		configPath := filepath.Join(configDir, "config.yml")
		configContent := `store:
  driver: bolt
tools:
  pandoc: /opt/pandoc
verbose: true`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))
		defer os.Remove(configPath)

		t.Setenv("XDG_CONFIG_HOME", tempDir)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "bolt", viper.GetString("store.driver"))
		assert.Equal(t, "/opt/pandoc", viper.GetString("tools.pandoc"))
		assert.Equal(t, true, viper.GetBool("verbose"))
	})

	t.Run("loads json config", func(t *testing.T) {
		viper.Reset()
		configPath := filepath.Join(configDir, "config.json")
		configContent := `{
  "markdown": {"engine": "goldmark"},
  "tools": {"timeout": "45s"}
}`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))
		defer os.Remove(configPath)

		t.Setenv("XDG_CONFIG_HOME", tempDir)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "goldmark", viper.GetString("markdown.engine"))
		assert.Equal(t, 45*time.Second, viper.GetDuration("tools.timeout"))
	})

	t.Run("handles missing config dir gracefully", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "nowhere"))

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
		assert.Equal(t, "", viper.GetString("store.driver"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("loads local config from directory", func(t *testing.T) {
		viper.Reset()

		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, ".docrender.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("store:\n  driver: bolt\n"), 0o644))

		loader := NewLoader()
		loader.loadLocalConfig(tempDir)

		assert.Equal(t, "bolt", viper.GetString("store.driver"))
	})

	t.Run("walks up directory tree to find config", func(t *testing.T) {
		viper.Reset()

		tempDir := t.TempDir()
		subDir := filepath.Join(tempDir, "subdir", "nested")
		require.NoError(t, os.MkdirAll(subDir, 0o755))

		configPath := filepath.Join(tempDir, ".docrender.yml")
		require.NoError(t, os.WriteFile(configPath, []byte("markdown:\n  engine: goldmark\n"), 0o644))

		loader := NewLoader()
		loader.loadLocalConfig(subDir)

		assert.Equal(t, "goldmark", viper.GetString("markdown.engine"))
	})

	t.Run("merges over global config", func(t *testing.T) {
		viper.Reset()

		globalDir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(globalDir, "docrender"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(globalDir, "docrender", "config.yml"),
			[]byte("tools:\n  pandoc: /global/pandoc\nverbose: true\n"), 0o644))
		t.Setenv("XDG_CONFIG_HOME", globalDir)

		localDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(localDir, ".docrender.yml"),
			[]byte("tools:\n  pandoc: /local/pandoc\n"), 0o644))

		loader := NewLoader()
		loader.loadGlobalConfig()
		loader.loadLocalConfig(localDir)

		assert.Equal(t, "/local/pandoc", viper.GetString("tools.pandoc"))
		assert.Equal(t, true, viper.GetBool("verbose"), "Keys absent locally should keep the global value")
	})

	t.Run("handles empty dir", func(t *testing.T) {
		viper.Reset()

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadLocalConfig("")
		})
	})
}

func TestLoader_BindEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("DOCRENDER_STORE_DRIVER", "bolt")
	t.Setenv("DOCRENDER_TOOLS_TIMEOUT", "5s")

	loader := NewLoader()
	loader.setupViperDefaults()
	loader.bindEnv()

	assert.Equal(t, "bolt", viper.GetString("store.driver"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("tools.timeout"))
}

func TestLoader_BindCommandFlags(t *testing.T) {
	viper.Reset()

	cmd := &cobra.Command{}
	cmd.Flags().String("data-dir", "", "Data directory")
	cmd.Flags().String("store", "", "Store driver")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")

	require.NoError(t, cmd.Flags().Set("data-dir", "/data"))
	require.NoError(t, cmd.Flags().Set("store", "bolt"))
	require.NoError(t, cmd.Flags().Set("verbose", "true"))

	loader := NewLoader()
	loader.bindCommandFlags(cmd)

	assert.Equal(t, "/data", viper.GetString("data_dir"))
	assert.Equal(t, "bolt", viper.GetString("store.driver"))
	assert.Equal(t, true, viper.GetBool("verbose"))
}

func TestLoader_LoadForCommand_Integration(t *testing.T) {
	t.Run("flags override env override local override global", func(t *testing.T) {
		viper.Reset()

		globalDir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(globalDir, "docrender"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(globalDir, "docrender", "config.yml"),
			[]byte("store:\n  driver: bolt\ntools:\n  pandoc: /global/pandoc\n  pdflatex: /global/pdflatex\n"), 0o644))
		t.Setenv("XDG_CONFIG_HOME", globalDir)

		workDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(workDir, ".docrender.yml"),
			[]byte("tools:\n  pandoc: /local/pandoc\n"), 0o644))
		t.Chdir(workDir)

		t.Setenv("DOCRENDER_TOOLS_PDFLATEX", "/env/pdflatex")

		dataDir := t.TempDir()
		cmd := &cobra.Command{}
		cmd.Flags().String("data-dir", "", "Data directory")
		cmd.Flags().String("store", "", "Store driver")
		require.NoError(t, cmd.Flags().Set("data-dir", dataDir))
		require.NoError(t, cmd.Flags().Set("store", "sqlite"))

		cfg, err := NewLoader().LoadForCommand(cmd)
		require.NoError(t, err)

		assert.Equal(t, "sqlite", cfg.StoreDriver, "Flag value should win")
		assert.Equal(t, "/env/pdflatex", cfg.PdfLaTeX, "Env should override files")
		assert.Equal(t, "/local/pandoc", cfg.Pandoc, "Local config should override global")
		assert.Equal(t, "xournalpp", cfg.Xournalpp)
		assert.Equal(t, dataDir, cfg.DataDir)
	})
}
