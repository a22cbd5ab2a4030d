package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/pipeline"
)

// Default configuration values
const (
	DefaultStoreDriver    = cache.DriverSQLite
	DefaultPandoc         = "pandoc"
	DefaultPdfLaTeX       = "pdflatex"
	DefaultXournalpp      = "xournalpp"
	DefaultTimeout        = pipeline.DefaultTimeout
	DefaultMarkdownEngine = pipeline.EnginePandoc
	DefaultValidatePDF    = true
	DefaultVerbose        = false
)

// Holds the configuration options for docrender
type Config struct {
	// Root of all docrender state
	DataDir string

	// Document library, default <data_dir>/documents
	DocumentsDir string

	// Render cache, default <data_dir>/cache
	CacheDir string

	// Staging area for renders, default is the system temp dir
	ScratchDir string

	// Cache metadata backend, sqlite or bolt
	StoreDriver string

	// Tool executables
	Pandoc    string
	PdfLaTeX  string
	Xournalpp string

	// Upper bound for a single tool invocation
	Timeout time.Duration

	// Markdown renderer, pandoc or goldmark
	MarkdownEngine string

	// Check produced PDFs with pdfcpu
	ValidatePDF bool

	// Enable verbose output
	Verbose bool
}

// DefaultDataDir returns $XDG_DATA_HOME/docrender or ~/.local/share/docrender
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "docrender")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "docrender")
	}

	return ".docrender"
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDir:        viper.GetString("data_dir"),
		DocumentsDir:   viper.GetString("documents_dir"),
		CacheDir:       viper.GetString("cache_dir"),
		ScratchDir:     viper.GetString("scratch_dir"),
		StoreDriver:    viper.GetString("store.driver"),
		Pandoc:         viper.GetString("tools.pandoc"),
		PdfLaTeX:       viper.GetString("tools.pdflatex"),
		Xournalpp:      viper.GetString("tools.xournalpp"),
		Timeout:        viper.GetDuration("tools.timeout"),
		MarkdownEngine: viper.GetString("markdown.engine"),
		ValidatePDF:    viper.GetBool("pdf.validate"),
		Verbose:        viper.GetBool("verbose"),
	}

	// Apply defaults if not set
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	if cfg.DocumentsDir == "" {
		cfg.DocumentsDir = filepath.Join(cfg.DataDir, "documents")
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DefaultStoreDriver
	}

	if cfg.Pandoc == "" {
		cfg.Pandoc = DefaultPandoc
	}

	if cfg.PdfLaTeX == "" {
		cfg.PdfLaTeX = DefaultPdfLaTeX
	}

	if cfg.Xournalpp == "" {
		cfg.Xournalpp = DefaultXournalpp
	}

	if cfg.MarkdownEngine == "" {
		cfg.MarkdownEngine = DefaultMarkdownEngine
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for _, dir := range []*string{&c.DataDir, &c.DocumentsDir, &c.CacheDir, &c.ScratchDir} {
		if *dir == "" {
			continue
		}

		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("invalid directory %q: %v", *dir, err)
		}

		*dir = abs
	}

	switch c.StoreDriver {
	case cache.DriverSQLite, cache.DriverBolt:
	default:
		return fmt.Errorf("invalid store driver: %s", c.StoreDriver)
	}

	switch c.MarkdownEngine {
	case pipeline.EnginePandoc, pipeline.EngineGoldmark:
	default:
		return fmt.Errorf("invalid markdown engine: %s", c.MarkdownEngine)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid tool timeout: %s", c.Timeout)
	}

	return nil
}

// Pipeline returns the render pipeline settings
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Pandoc:         c.Pandoc,
		PdfLaTeX:       c.PdfLaTeX,
		Xournalpp:      c.Xournalpp,
		Timeout:        c.Timeout,
		MarkdownEngine: c.MarkdownEngine,
		ValidatePDF:    c.ValidatePDF,
		ScratchDir:     c.ScratchDir,
	}
}
