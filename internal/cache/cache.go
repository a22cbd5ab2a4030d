// Package cache provides render caching for documents.
//
// A document's rendered output is cached as a single artifact file addressed
// by document id. Validity is tracked by a Store row per document:
//
//  1. The Fingerprinter hashes file metadata under the document's folder
//  2. The Store maps document id to (fingerprint, kind) and only reports a
//     hit when the stored fingerprint matches the current one exactly
//  3. Artifacts holds the rendered bytes, overwritten on every new render
//
// A row implies an artifact file. Writers keep that invariant by deleting
// the row before replacing the artifact and upserting afterwards; Recover
// restores it after a crash.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/docrender/internal/document"
)

const (
	// DriverSQLite stores entries in a SQLite database (default)
	DriverSQLite = "sqlite"

	// DriverBolt stores entries in a BoltDB file
	DriverBolt = "bolt"
)

// ErrNotFound is returned by Store.Get when no entry exists
var ErrNotFound = errors.New("cache entry not found")

// Store is the durable mapping from document id to its cached render
type Store interface {
	// Lookup returns the cached kind only if the stored fingerprint matches
	Lookup(ctx context.Context, id document.ID, fp Fingerprint) (Kind, bool, error)

	// Get returns the stored entry regardless of fingerprint
	Get(ctx context.Context, id document.ID) (*Entry, error)

	// Upsert atomically replaces any entry for the document
	Upsert(ctx context.Context, entry Entry) error

	// Delete removes the entry for the document
	Delete(ctx context.Context, id document.ID) error

	// List returns all entries
	List(ctx context.Context) ([]Entry, error)

	// Clear removes all entries
	Clear(ctx context.Context) error

	Close() error
}

// StoreError wraps a failure of the persistence layer
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return &StoreError{Op: op, Err: err}
}

// Open opens the store for driver inside dir
func Open(driver, dir string, logger *slog.Logger) (Store, error) {
	logger = orDiscard(logger)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(filepath.Join(dir, "cache.sqlite"), logger)
	case DriverBolt:
		return OpenBolt(filepath.Join(dir, "cache.db"), logger)
	}

	return nil, fmt.Errorf("unknown store driver %q", driver)
}

// Stats summarises the cache contents
type Stats struct {
	Entries int          `json:"entries"`
	ByKind  map[Kind]int `json:"by_kind"`
	Bytes   int64        `json:"bytes"`
}

// Collect gathers statistics from a store and its artifacts
func Collect(ctx context.Context, store Store, artifacts *Artifacts) (*Stats, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Entries: len(entries),
		ByKind:  make(map[Kind]int),
	}

	for _, entry := range entries {
		stats.ByKind[entry.Kind]++
	}

	size, err := artifacts.Size()
	if err != nil {
		return nil, err
	}

	stats.Bytes = size
	return stats, nil
}

// Recover restores the row-implies-artifact invariant after a crash: rows
// without an artifact are dropped, artifacts without a row and temp files
// are removed. It returns the number of rows and files removed.
func Recover(ctx context.Context, store Store, artifacts *Artifacts, logger *slog.Logger) (int, int, error) {
	logger = orDiscard(logger)

	entries, err := store.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	keep := make(map[document.ID]bool, len(entries))
	dropped := 0

	for _, entry := range entries {
		if artifacts.Exists(entry.DocumentID) {
			keep[entry.DocumentID] = true
			continue
		}

		if err := store.Delete(ctx, entry.DocumentID); err != nil {
			return dropped, 0, err
		}

		logger.Warn("dropped cache entry without artifact", "id", entry.DocumentID, "fingerprint", entry.Fingerprint)
		dropped++
	}

	removed, err := artifacts.Sweep(keep)
	if err != nil {
		return dropped, removed, fmt.Errorf("failed to sweep artifacts: %w", err)
	}

	return dropped, removed, nil
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return logger
}
