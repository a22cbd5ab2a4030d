package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/docrender/internal/document"
)

func TestLibrary_CreateAndMeta(t *testing.T) {
	ctx := context.Background()
	lib, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	meta, err := lib.Create(ctx, CreateOptions{
		Title:   "Notes",
		Type:    document.Markdown,
		Tags:    []string{"work", "abc"},
		Content: strings.NewReader("# Hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "md", meta.Extension)
	assert.Equal(t, []string{"abc", "work"}, meta.Tags, "Tags should be sorted")

	ok, err := lib.Exists(ctx, meta.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := lib.Meta(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, loaded.ID)
	assert.Equal(t, "Notes", loaded.Title)
	assert.Equal(t, document.Markdown, loaded.Type)
	assert.Equal(t, meta.Tags, loaded.Tags)
	assert.True(t, meta.Created.Equal(loaded.Created))
	assert.False(t, loaded.Accessed.IsZero())

	content, err := os.ReadFile(lib.FilePath(loaded))
	require.NoError(t, err)
	assert.Equal(t, "# Hello", string(content))

	// Metadata must live outside the document folder
	entries, err := os.ReadDir(lib.FolderPath(meta.ID))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLibrary_PlainHasNoExtension(t *testing.T) {
	lib, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	meta, err := lib.Create(context.Background(), CreateOptions{Title: "Plain", Type: document.Plain})
	require.NoError(t, err)

	assert.Equal(t, "", meta.Extension)
	assert.Equal(t, filepath.Join(lib.FolderPath(meta.ID), meta.ID.String()), lib.FilePath(meta))
}

func TestLibrary_Import(t *testing.T) {
	ctx := context.Background()
	lib, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "thesis.tex")
	require.NoError(t, os.WriteFile(src, []byte(`\documentclass{article}`), 0o644))

	meta, err := lib.Import(ctx, src, CreateOptions{Type: document.LaTeX})
	require.NoError(t, err)

	assert.Equal(t, "thesis", meta.Title)
	assert.Equal(t, "tex", meta.Extension)

	content, err := os.ReadFile(lib.FilePath(meta))
	require.NoError(t, err)
	assert.Equal(t, `\documentclass{article}`, string(content))
}

func TestLibrary_MissingDocument(t *testing.T) {
	ctx := context.Background()
	lib, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	id, err := document.NewID()
	require.NoError(t, err)

	ok, err := lib.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = lib.Meta(ctx, id)
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)

	err = lib.Delete(ctx, id)
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
}

func TestLibrary_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	lib, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	first, err := lib.Create(ctx, CreateOptions{Title: "first"})
	require.NoError(t, err)

	second, err := lib.Create(ctx, CreateOptions{Title: "second", Type: document.LaTeX})
	require.NoError(t, err)

	// Stray directories are ignored
	require.NoError(t, os.Mkdir(filepath.Join(lib.Root(), "not-a-document"), 0o755))

	metas, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, first.ID, metas[0].ID)
	assert.Equal(t, second.ID, metas[1].ID)

	require.NoError(t, lib.Delete(ctx, first.ID))

	metas, err = lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, second.ID, metas[0].ID)

	_, err = os.Stat(filepath.Join(lib.Root(), first.ID.String()+".yaml"))
	assert.True(t, os.IsNotExist(err))
}
