// Package library is a filesystem-backed document store.
//
// Each document lives in its own folder under the library root:
//
//	<root>/<id>/<id>[.<ext>]   primary file plus any assets next to it
//	<root>/<id>.yaml           metadata
//
// Metadata sits outside the document folder so editing a title or tag
// does not change the folder's render fingerprint.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Norgate-AV/docrender/internal/document"
)

const metaSuffix = ".yaml"

// Library manages documents on disk
type Library struct {
	root   string
	logger *slog.Logger
}

// New opens a library rooted at dir, creating it if needed
func New(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	return &Library{root: dir, logger: logger}, nil
}

// Root returns the library root directory
func (l *Library) Root() string {
	return l.root
}

// FolderPath returns the storage folder of a document
func (l *Library) FolderPath(id document.ID) string {
	return filepath.Join(l.root, id.String())
}

// FilePath returns the primary file of a document
func (l *Library) FilePath(meta *document.Meta) string {
	return filepath.Join(l.FolderPath(meta.ID), document.BaseName(meta))
}

func (l *Library) metaPath(id document.ID) string {
	return filepath.Join(l.root, id.String()+metaSuffix)
}

// Exists reports whether the document's folder is present
func (l *Library) Exists(_ context.Context, id document.ID) (bool, error) {
	info, err := os.Stat(l.FolderPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return info.IsDir(), nil
}

// Meta reads a document's metadata
func (l *Library) Meta(ctx context.Context, id document.ID) (*document.Meta, error) {
	ok, err := l.Exists(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrDocumentNotFound, id)
	}

	data, err := os.ReadFile(l.metaPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no metadata", document.ErrDocumentNotFound, id)
		}

		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta document.Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", id, err)
	}

	meta.ID = id

	if info, err := os.Stat(l.FilePath(&meta)); err == nil {
		meta.Accessed = info.ModTime()
	}

	return &meta, nil
}

// CreateOptions describes a new document
type CreateOptions struct {
	Title string
	Type  document.Type
	Tags  []string

	// Extension overrides the primary file extension, default is the type's name
	Extension string

	// Content is the initial body of the primary file
	Content io.Reader
}

// Create adds a new document and returns its metadata
func (l *Library) Create(_ context.Context, opts CreateOptions) (*document.Meta, error) {
	id, err := document.NewID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate document id: %w", err)
	}

	ext := opts.Extension
	if ext == "" && opts.Type != document.Plain {
		ext = opts.Type.String()
	}

	tags := append([]string(nil), opts.Tags...)
	sort.Strings(tags)

	meta := &document.Meta{
		ID:        id,
		Title:     opts.Title,
		Type:      opts.Type,
		Tags:      tags,
		Extension: strings.TrimPrefix(ext, "."),
		Created:   time.Now().UTC().Truncate(time.Second),
	}

	if err := os.MkdirAll(l.FolderPath(id), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document folder: %w", err)
	}

	if err := l.writeFile(l.FilePath(meta), opts.Content); err != nil {
		_ = os.RemoveAll(l.FolderPath(id))
		return nil, err
	}

	if err := l.writeMeta(meta); err != nil {
		_ = os.RemoveAll(l.FolderPath(id))
		return nil, err
	}

	l.logger.Debug("document created", "id", id, "type", meta.Type, "title", meta.Title)

	return meta, nil
}

// Import creates a document from an existing file
func (l *Library) Import(ctx context.Context, path string, opts CreateOptions) (*document.Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if opts.Extension == "" {
		opts.Extension = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	if opts.Title == "" {
		opts.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	opts.Content = f
	return l.Create(ctx, opts)
}

// List returns the metadata of every document, oldest first
func (l *Library) List(ctx context.Context) ([]*document.Meta, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var metas []*document.Meta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, err := document.ParseID(entry.Name())
		if err != nil {
			continue
		}

		meta, err := l.Meta(ctx, id)
		if err != nil {
			l.logger.Warn("skipping unreadable document", "id", id, "error", err)
			continue
		}

		metas = append(metas, meta)
	}

	// UUIDv7 ids sort by creation time
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ID.String() < metas[j].ID.String()
	})

	return metas, nil
}

// Delete removes a document's folder and metadata
func (l *Library) Delete(ctx context.Context, id document.ID) error {
	ok, err := l.Exists(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s", document.ErrDocumentNotFound, id)
	}

	if err := os.RemoveAll(l.FolderPath(id)); err != nil {
		return fmt.Errorf("failed to remove document folder: %w", err)
	}

	if err := os.Remove(l.metaPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata: %w", err)
	}

	l.logger.Debug("document deleted", "id", id)

	return nil
}

func (l *Library) writeFile(path string, content io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create document file: %w", err)
	}

	if content != nil {
		if _, err := io.Copy(f, content); err != nil {
			f.Close()
			return fmt.Errorf("failed to write document file: %w", err)
		}
	}

	return f.Close()
}

func (l *Library) writeMeta(meta *document.Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(l.metaPath(meta.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}
