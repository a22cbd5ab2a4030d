package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Norgate-AV/docrender/internal/document"
)

// Fingerprint summarises the modification state of a document folder
type Fingerprint uint64

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// ParseFingerprint parses the hex form produced by String
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}

	return Fingerprint(v), nil
}

// Bytes returns the big-endian encoding used for persistence
func (f Fingerprint) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(f))
}

// FingerprintFromBytes decodes the output of Bytes
func FingerprintFromBytes(b []byte) (Fingerprint, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid fingerprint length %d", len(b))
	}

	return Fingerprint(binary.BigEndian.Uint64(b)), nil
}

// FolderResolver maps a document id to its storage folder
type FolderResolver interface {
	FolderPath(id document.ID) string
}

// Fingerprinter computes folder fingerprints for documents
type Fingerprinter struct {
	folders FolderResolver
}

// NewFingerprinter creates a fingerprinter resolving folders through r
func NewFingerprinter(r FolderResolver) *Fingerprinter {
	return &Fingerprinter{folders: r}
}

// Fingerprint hashes the current state of a document's folder.
// Returns document.ErrDocumentNotFound if the folder is absent.
func (f *Fingerprinter) Fingerprint(ctx context.Context, id document.ID) (Fingerprint, error) {
	return FingerprintDir(ctx, f.folders.FolderPath(id))
}

// FingerprintDir hashes every regular file below dir.
//
// Files are visited in the lexical order of filepath.WalkDir. For each file
// the slash-separated relative path, the size and the modification time in
// Unix milliseconds are folded into a single xxhash64 state, so the same
// on-disk state always gives the same value.
func FingerprintDir(ctx context.Context, dir string) (Fingerprint, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", document.ErrDocumentNotFound, dir)
		}

		return 0, fmt.Errorf("failed to stat document folder: %w", err)
	}

	if !info.IsDir() {
		return 0, fmt.Errorf("%w: %s is not a directory", document.ErrDocumentNotFound, dir)
	}

	h := xxhash.New()
	var buf [8]byte

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		_, _ = h.WriteString(filepath.ToSlash(rel))
		_, _ = h.Write([]byte{0})

		binary.LittleEndian.PutUint64(buf[:], uint64(fi.Size()))
		_, _ = h.Write(buf[:])

		binary.LittleEndian.PutUint64(buf[:], uint64(fi.ModTime().UnixMilli()))
		_, _ = h.Write(buf[:])

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fingerprint %s: %w", dir, err)
	}

	return Fingerprint(h.Sum64()), nil
}

// MarshalText implements encoding.TextMarshaler
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}

	*f = parsed
	return nil
}
