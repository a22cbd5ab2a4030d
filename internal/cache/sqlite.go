package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Norgate-AV/docrender/internal/document"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps cache entries in the Cache table of a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite creates or opens the database at path.
//
// The database runs in WAL mode with a 5 second busy timeout. The pool is
// limited to a single connection, so statements issued by concurrent
// renders are serialized and never interleave inside a transaction.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	logger = orDiscard(logger)

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"busy_timeout(5000)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storeErr("open", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, storeErr("apply schema", err)
	}

	logger.Debug("opened sqlite cache store", "path", path)

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Lookup returns the cached kind if the stored fingerprint matches fp
func (s *SQLiteStore) Lookup(ctx context.Context, id document.ID, fp Fingerprint) (Kind, bool, error) {
	var kind string
	err := s.db.QueryRowContext(ctx,
		"SELECT render_kind FROM Cache WHERE document = ? AND fingerprint = ?",
		id.String(), fp.Bytes(),
	).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Plain, false, nil
	}

	if err != nil {
		return Plain, false, storeErr("lookup", err)
	}

	k, err := ParseKind(kind)
	if err != nil {
		return Plain, false, storeErr("lookup", err)
	}

	return k, true, nil
}

// Get returns the entry of a document, ErrNotFound if there is none
func (s *SQLiteStore) Get(ctx context.Context, id document.ID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT document, fingerprint, render_kind, updated_at FROM Cache WHERE document = ?",
		id.String(),
	)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, storeErr("get", err)
	}

	return entry, nil
}

// Upsert inserts the entry, replacing fingerprint and kind on conflict
func (s *SQLiteStore) Upsert(ctx context.Context, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO Cache (document, fingerprint, render_kind, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			render_kind = excluded.render_kind,
			updated_at  = excluded.updated_at`,
		entry.DocumentID.String(), entry.Fingerprint.Bytes(), entry.Kind.String(), entry.UpdatedAt.UnixMilli(),
	)

	return storeErr("upsert", err)
}

// Delete removes the entry of a document
func (s *SQLiteStore) Delete(ctx context.Context, id document.ID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM Cache WHERE document = ?", id.String())
	return storeErr("delete", err)
}

// List returns all entries ordered by document id
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT document, fingerprint, render_kind, updated_at FROM Cache ORDER BY document",
	)
	if err != nil {
		return nil, storeErr("list", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storeErr("list", err)
		}

		entries = append(entries, *entry)
	}

	return entries, storeErr("list", rows.Err())
}

// Clear removes all entries
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM Cache")
	return storeErr("clear", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		id        string
		fp        []byte
		kind      string
		updatedAt int64
	)

	if err := row.Scan(&id, &fp, &kind, &updatedAt); err != nil {
		return nil, err
	}

	docID, err := document.ParseID(id)
	if err != nil {
		return nil, err
	}

	fingerprint, err := FingerprintFromBytes(fp)
	if err != nil {
		return nil, err
	}

	k, err := ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", id, err)
	}

	return &Entry{
		DocumentID:  docID,
		Fingerprint: fingerprint,
		Kind:        k,
		UpdatedAt:   time.UnixMilli(updatedAt),
	}, nil
}
