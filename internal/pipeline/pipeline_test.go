package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/testutil"
)

// newInput lays out a document folder the way the library does
func newInput(t *testing.T, typ document.Type, ext, content string) Input {
	t.Helper()

	meta := &document.Meta{ID: uuid.New(), Title: "Test <doc>", Type: typ, Extension: ext}
	folder := filepath.Join(t.TempDir(), meta.ID.String())
	require.NoError(t, os.MkdirAll(folder, 0o755))

	file := filepath.Join(folder, document.BaseName(meta))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	return Input{Meta: meta, Folder: folder, File: file}
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	cfg.ValidatePDF = false
	cfg.ScratchDir = t.TempDir()

	return cfg
}

func assertScratchEmpty(t *testing.T, cfg Config) {
	t.Helper()

	entries, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories must be released")
}

func TestPipelines_Plain(t *testing.T) {
	cfg := testConfig(t)
	in := newInput(t, document.Plain, "", "testogus")

	out, err := New(cfg, nil).Run(context.Background(), in)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, cache.Plain, out.Kind)

	content, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, "testogus", string(content))

	require.NoError(t, out.Close())
	_, err = os.Stat(in.File)
	assert.NoError(t, err, "Closing a passthrough output must not touch the document")
}

func TestPipelines_MarkdownPandoc(t *testing.T) {
	pandoc := testutil.Pandoc(t)
	cfg := testConfig(t)
	cfg.Pandoc = pandoc.Path

	in := newInput(t, document.Markdown, "md", "hello from markdown")
	require.NoError(t, os.WriteFile(filepath.Join(in.Folder, "figure.png"), []byte("png"), 0o644))

	out, err := New(cfg, nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, cache.HTML, out.Kind)
	assert.Equal(t, []string{"in.md -o out.html -s"}, pandoc.Calls(t))

	content, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<!DOCTYPE html>")
	assert.Contains(t, string(content), "hello from markdown")
	assert.Contains(t, string(out.Log), "in.md -o out.html -s")

	// Assets are staged next to the renamed input
	_, err = os.Stat(filepath.Join(filepath.Dir(out.Path), "figure.png"))
	assert.NoError(t, err)

	require.NoError(t, out.Close())
	assertScratchEmpty(t, cfg)

	// The canonical copy is untouched
	_, err = os.Stat(in.File)
	assert.NoError(t, err)
}

func TestPipelines_MarkdownGoldmark(t *testing.T) {
	cfg := testConfig(t)
	cfg.MarkdownEngine = EngineGoldmark

	in := newInput(t, document.Markdown, "md", "# Heading\n\nSome *emphasis* and a | table |\n")

	out, err := New(cfg, nil).Run(context.Background(), in)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, cache.HTML, out.Kind)

	content, err := os.ReadFile(out.Path)
	require.NoError(t, err)

	page := string(content)
	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<title>Test &lt;doc&gt;</title>")
	assert.Contains(t, page, `<h1 id="heading">Heading</h1>`)
	assert.Contains(t, page, "<em>emphasis</em>")
	assert.Contains(t, page, "</html>")
}

func TestPipelines_MarkdownToolFailure(t *testing.T) {
	pandoc := testutil.Failing(t, "pandoc", 64, "YAML parse exception at line 3")
	cfg := testConfig(t)
	cfg.Pandoc = pandoc.Path

	in := newInput(t, document.Markdown, "md", "---\nbroken: [\n---\n")

	_, err := New(cfg, nil).Run(context.Background(), in)
	require.Error(t, err)
	assert.True(t, IsRecoverable(err))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 64, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "YAML parse exception")

	assertScratchEmpty(t, cfg)
}

func TestPipelines_MissingOutput(t *testing.T) {
	pandoc := testutil.NewTool(t, "pandoc", "exit 0")
	cfg := testConfig(t)
	cfg.Pandoc = pandoc.Path

	in := newInput(t, document.Markdown, "md", "text")

	_, err := New(cfg, nil).Run(context.Background(), in)

	var outputErr *OutputError
	require.ErrorAs(t, err, &outputErr)
	assert.True(t, IsRecoverable(err))
	assertScratchEmpty(t, cfg)
}

func TestPipelines_LaTeX(t *testing.T) {
	pdflatex := testutil.PdfLaTeX(t)
	cfg := testConfig(t)
	cfg.PdfLaTeX = pdflatex.Path

	in := newInput(t, document.LaTeX, "tex", `\documentclass{article}`)

	out, err := New(cfg, nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, cache.PDF, out.Kind)
	assert.Equal(t, []string{
		"-draftmode -halt-on-error in.tex",
		"-halt-on-error in.tex",
	}, pdflatex.Calls(t))

	content, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "%PDF-1.4")

	require.NoError(t, out.Close())
	assertScratchEmpty(t, cfg)
}

func TestPipelines_LaTeXDraftFailureStops(t *testing.T) {
	pdflatex := testutil.NewTool(t, "pdflatex", "echo '! Undefined control sequence.'\nexit 1")
	cfg := testConfig(t)
	cfg.PdfLaTeX = pdflatex.Path

	in := newInput(t, document.LaTeX, "tex", `\foo`)

	_, err := New(cfg, nil).Run(context.Background(), in)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 1, pdflatex.Count(t), "Final pass must not run after a failed draft pass")
	assert.Contains(t, Report(err), "Undefined control sequence")
	assertScratchEmpty(t, cfg)
}

func TestPipelines_Xournal(t *testing.T) {
	xournal := testutil.Xournal(t)
	cfg := testConfig(t)
	cfg.Xournalpp = xournal.Path

	in := newInput(t, document.Xournal, "xopp", "%PDF-1.4 notebook")

	out, err := New(cfg, nil).Run(context.Background(), in)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, cache.PDF, out.Kind)
	assert.Equal(t, []string{"-p out.pdf in.xopp"}, xournal.Calls(t))
}

func TestPipelines_InvalidPDF(t *testing.T) {
	xournal := testutil.Xournal(t)
	cfg := testConfig(t)
	cfg.Xournalpp = xournal.Path
	cfg.ValidatePDF = true

	in := newInput(t, document.Xournal, "xopp", "this is not a pdf")

	_, err := New(cfg, nil).Run(context.Background(), in)

	var outputErr *OutputError
	require.ErrorAs(t, err, &outputErr)
	assert.Equal(t, "xournalpp", outputErr.Tool)
	assertScratchEmpty(t, cfg)
}

func TestPipelines_UnknownType(t *testing.T) {
	cfg := testConfig(t)
	in := newInput(t, document.Type(99), "", "")

	_, err := New(cfg, nil).Run(context.Background(), in)
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))
}

func TestPipelines_LaTeXPassesWithMockedExec(t *testing.T) {
	cfg := testConfig(t)
	cfg.PdfLaTeX = "/opt/texlive/pdflatex"

	var calls [][]string
	cb := NewCommandBuilder(time.Second, nil)
	cb.execCommand = func(_ context.Context, name string, args ...string) Commander {
		calls = append(calls, append([]string{name}, args...))
		return &mockCommander{runFunc: func() error { return nil }}
	}

	in := newInput(t, document.LaTeX, "tex", `\documentclass{article}`)

	_, err := NewWithBuilder(cfg, cb, nil).Run(context.Background(), in)

	// Nothing writes in.pdf, so the run ends with a missing output
	var outErr *OutputError
	require.ErrorAs(t, err, &outErr)
	assert.Equal(t, "pdflatex", outErr.Tool)

	assert.Equal(t, [][]string{
		{"/opt/texlive/pdflatex", "-draftmode", "-halt-on-error", "in.tex"},
		{"/opt/texlive/pdflatex", "-halt-on-error", "in.tex"},
	}, calls)

	assertScratchEmpty(t, cfg)
}
