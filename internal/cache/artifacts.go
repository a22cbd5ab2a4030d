package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/docrender/internal/document"
)

const (
	// logsDir holds the captured tool output of the last render per document
	logsDir = "logs"

	// tmpPrefix marks partially written files; they never count as artifacts
	tmpPrefix = ".tmp-"
)

// Artifacts is a flat file-per-document directory of rendered output.
// Writes go through a temp file and a rename so a reader never sees a
// partially written artifact.
type Artifacts struct {
	root string
}

// NewArtifacts opens the artifact directory, creating it if needed
func NewArtifacts(dir string) (*Artifacts, error) {
	if err := os.MkdirAll(filepath.Join(dir, logsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &Artifacts{root: dir}, nil
}

// Root returns the artifact directory
func (a *Artifacts) Root() string {
	return a.root
}

// Path returns the stable artifact location for a document
func (a *Artifacts) Path(id document.ID) string {
	return filepath.Join(a.root, id.String())
}

// LogPath returns the location of a document's last render log
func (a *Artifacts) LogPath(id document.ID) string {
	return filepath.Join(a.root, logsDir, id.String()+".log")
}

// Exists reports whether an artifact is present for the document
func (a *Artifacts) Exists(id document.ID) bool {
	info, err := os.Stat(a.Path(id))
	return err == nil && info.Mode().IsRegular()
}

// Import copies a rendered file into the artifact slot of a document,
// replacing any previous artifact
func (a *Artifacts) Import(id document.ID, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open rendered output: %w", err)
	}
	defer in.Close()

	if err := a.write(a.root, a.Path(id), in); err != nil {
		return fmt.Errorf("failed to store artifact for %s: %w", id, err)
	}

	return nil
}

// WriteBytes stores data as the artifact of a document
func (a *Artifacts) WriteBytes(id document.ID, data []byte) error {
	if err := a.write(a.root, a.Path(id), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store artifact for %s: %w", id, err)
	}

	return nil
}

// WriteLog stores the tool output of a render
func (a *Artifacts) WriteLog(id document.ID, data []byte) error {
	dir := filepath.Join(a.root, logsDir)
	if err := a.write(dir, a.LogPath(id), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store render log for %s: %w", id, err)
	}

	return nil
}

// Remove deletes the artifact and log of a document
func (a *Artifacts) Remove(id document.ID) error {
	for _, path := range []string{a.Path(id), a.LogPath(id)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	return nil
}

// List returns the ids of all stored artifacts
func (a *Artifacts) List() ([]document.ID, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var ids []document.ID
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		id, err := document.ParseID(entry.Name())
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

// Size returns the total size of all artifacts in bytes
func (a *Artifacts) Size() (int64, error) {
	ids, err := a.List()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, id := range ids {
		info, err := os.Stat(a.Path(id))
		if err != nil {
			continue
		}

		total += info.Size()
	}

	return total, nil
}

// Sweep removes leftover temp files and artifacts not in keep.
// It returns the number of files removed.
func (a *Artifacts) Sweep(keep map[document.ID]bool) (int, error) {
	removed := 0

	for _, dir := range []string{a.root, filepath.Join(a.root, logsDir)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}

			name := entry.Name()
			if !strings.HasPrefix(name, tmpPrefix) {
				id, err := document.ParseID(strings.TrimSuffix(name, ".log"))
				if err != nil || keep[id] {
					continue
				}
			}

			if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, err
			}

			removed++
		}
	}

	return removed, nil
}

// Clear removes every artifact and log. Other files in the directory,
// such as the store database, are left alone.
func (a *Artifacts) Clear() error {
	_, err := a.Sweep(nil)
	return err
}

// write streams r into dst through a temp file in dir
func (a *Artifacts) write(dir, dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

// CopyTree copies every regular file below src into dst, preserving the
// relative layout and file modes
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if err := copyFile(path, target); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, err)
		}

		return nil
	})
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer srcFile.Close()

	// Create parent directory if needed
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	// Preserve file permissions
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.Chmod(dst, srcInfo.Mode())
}
