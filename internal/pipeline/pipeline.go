// Package pipeline converts documents into cacheable artifacts.
//
// Every document type maps to exactly one pipeline. Pipelines that call an
// external tool stage the document folder into a scratch directory first,
// rename the primary file to the name the tool expects and run the tool
// there, so the canonical copy is never touched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/document"
)

// Markdown engines
const (
	EnginePandoc   = "pandoc"
	EngineGoldmark = "goldmark"
)

// Config holds the tool settings of the pipelines
type Config struct {
	// Tool executables, looked up in PATH when not absolute
	Pandoc    string
	PdfLaTeX  string
	Xournalpp string

	// Timeout bounds each tool invocation
	Timeout time.Duration

	// MarkdownEngine selects pandoc or the built-in goldmark converter
	MarkdownEngine string

	// ValidatePDF checks that produced PDFs can be read
	ValidatePDF bool

	// ScratchDir is where staging directories are created, default os.TempDir
	ScratchDir string
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Pandoc:         "pandoc",
		PdfLaTeX:       "pdflatex",
		Xournalpp:      "xournalpp",
		Timeout:        DefaultTimeout,
		MarkdownEngine: EnginePandoc,
		ValidatePDF:    true,
	}
}

// Input is the document handed to a pipeline
type Input struct {
	Meta *document.Meta

	// Folder is the document's storage folder
	Folder string

	// File is the document's primary file inside Folder
	File string
}

// Output is a successful render. Close releases the scratch directory.
type Output struct {
	Kind cache.Kind

	// Path of the rendered file, valid until Close
	Path string

	// Log is the transcript of the tool invocations
	Log []byte

	scratch string
}

// Close removes the scratch directory of the render
func (o *Output) Close() error {
	if o == nil || o.scratch == "" {
		return nil
	}

	scratch := o.scratch
	o.scratch = ""

	return os.RemoveAll(scratch)
}

type pipelineFunc func(ctx context.Context, in Input) (*Output, error)

// Pipelines runs the render pipeline matching a document's type
type Pipelines struct {
	cfg     Config
	builder *CommandBuilder
	logger  *slog.Logger
}

// New creates the pipelines from cfg
func New(cfg Config, logger *slog.Logger) *Pipelines {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipelines{
		cfg:     cfg,
		builder: NewCommandBuilder(cfg.Timeout, logger),
		logger:  logger,
	}
}

// NewWithBuilder creates the pipelines with a custom command builder
func NewWithBuilder(cfg Config, builder *CommandBuilder, logger *slog.Logger) *Pipelines {
	p := New(cfg, logger)
	p.builder = builder

	return p
}

// Run renders in with the pipeline for its document type. Recoverable
// failures are *ToolError, *TimeoutError and *OutputError; see IsRecoverable.
func (p *Pipelines) Run(ctx context.Context, in Input) (*Output, error) {
	run, err := p.forType(in.Meta.Type)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := run(ctx, in)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("pipeline finished",
		"id", in.Meta.ID,
		"type", in.Meta.Type,
		"kind", out.Kind,
		"duration", time.Since(start),
	)

	return out, nil
}

func (p *Pipelines) forType(t document.Type) (pipelineFunc, error) {
	switch t {
	case document.Plain:
		return p.plain, nil
	case document.Markdown:
		if p.cfg.MarkdownEngine == EngineGoldmark {
			return p.markdownGoldmark, nil
		}

		return p.markdownPandoc, nil
	case document.LaTeX:
		return p.latex, nil
	case document.Xournal:
		return p.xournal, nil
	}

	return nil, fmt.Errorf("no pipeline for document type %s", t)
}

// plain passes the primary file through unchanged
func (p *Pipelines) plain(_ context.Context, in Input) (*Output, error) {
	if _, err := os.Stat(in.File); err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	return &Output{Kind: cache.Plain, Path: in.File}, nil
}

// stage copies the document folder into a fresh scratch directory and
// renames the primary file to inputName
func (p *Pipelines) stage(in Input, inputName string) (string, error) {
	if p.cfg.ScratchDir != "" {
		if err := os.MkdirAll(p.cfg.ScratchDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create scratch root: %w", err)
		}
	}

	scratch, err := os.MkdirTemp(p.cfg.ScratchDir, "docrender-")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	if err := cache.CopyTree(in.Folder, scratch); err != nil {
		os.RemoveAll(scratch)
		return "", fmt.Errorf("failed to stage document: %w", err)
	}

	rel, err := filepath.Rel(in.Folder, in.File)
	if err != nil {
		os.RemoveAll(scratch)
		return "", fmt.Errorf("failed to stage document: %w", err)
	}

	if err := os.Rename(filepath.Join(scratch, rel), filepath.Join(scratch, inputName)); err != nil {
		os.RemoveAll(scratch)
		return "", fmt.Errorf("failed to stage document: %w", err)
	}

	return scratch, nil
}

// collect checks a tool's output file and wraps it as an Output that owns scratch
func collect(kind cache.Kind, tool, scratch, name string, log []byte) (*Output, error) {
	path := filepath.Join(scratch, name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &OutputError{Tool: tool, Output: name, Err: err}
		}

		return nil, fmt.Errorf("failed to read %s output: %w", tool, err)
	}

	if !info.Mode().IsRegular() {
		return nil, &OutputError{Tool: tool, Output: name, Err: errors.New("not a regular file")}
	}

	return &Output{Kind: kind, Path: path, Log: log, scratch: scratch}, nil
}
