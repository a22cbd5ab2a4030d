package config

import (
	"os"
	"path/filepath"
)

// configExtensions lists the config formats viper reads, in lookup order
var configExtensions = []string{"yml", "yaml", "json", "toml"}

// findConfigIn returns the first regular file named base.<ext> in dir
func findConfigIn(dir, base string) string {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, base+"."+ext)

		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}

	return ""
}

// FindLocalConfig returns the nearest .docrender.* file in dir or one of its
// parents, or "" when there is none
func FindLocalConfig(dir string) string {
	for {
		if path := findConfigIn(dir, ".docrender"); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// FindGlobalConfig returns the user's config.* file, or "" when there is none
func FindGlobalConfig() string {
	dir := globalConfigDir()
	if dir == "" {
		return ""
	}

	return findConfigIn(dir, "config")
}
