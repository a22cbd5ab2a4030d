package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DOCRENDER_STORE_DRIVER
const EnvPrefix = "DOCRENDER"

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForCommand loads configuration for a command run from the working directory
func (l *Loader) LoadForCommand(cmd *cobra.Command) (*Config, error) {
	wd, _ := os.Getwd()

	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(wd)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("store.driver", DefaultStoreDriver)
	viper.SetDefault("tools.pandoc", DefaultPandoc)
	viper.SetDefault("tools.pdflatex", DefaultPdfLaTeX)
	viper.SetDefault("tools.xournalpp", DefaultXournalpp)
	viper.SetDefault("tools.timeout", DefaultTimeout)
	viper.SetDefault("markdown.engine", DefaultMarkdownEngine)
	viper.SetDefault("pdf.validate", DefaultValidatePDF)
	viper.SetDefault("verbose", DefaultVerbose)
}

// globalConfigDir returns $XDG_CONFIG_HOME/docrender or the platform equivalent
func globalConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return ""
		}

		base = dir
	}

	return filepath.Join(base, "docrender")
}

// loadGlobalConfig loads the user's global configuration
func (l *Loader) loadGlobalConfig() {
	if path := FindGlobalConfig(); path != "" {
		viper.SetConfigFile(path)
		_ = viper.ReadInConfig()
	}
}

// loadLocalConfig merges the nearest .docrender.* found from dir upwards
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := FindLocalConfig(abs)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindEnv enables DOCRENDER_* overrides
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	flags := map[string]string{
		"data_dir":        "data-dir",
		"store.driver":    "store",
		"markdown.engine": "markdown-engine",
		"tools.timeout":   "timeout",
		"verbose":         "verbose",
	}

	for key, name := range flags {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}
