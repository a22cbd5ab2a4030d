package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/docrender/internal/document"
)

// bucketName is the BoltDB bucket name for render entries
const bucketName = "renders"

// boltRecord is the value stored under a document id
type boltRecord struct {
	Fingerprint uint64 `cbor:"1,keyasint"`
	Kind        string `cbor:"2,keyasint"`
	UpdatedAt   int64  `cbor:"3,keyasint"`
}

var boltEnc cbor.EncMode

func init() {
	var err error

	boltEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
}

func encodeEntry(entry Entry) ([]byte, error) {
	return boltEnc.Marshal(boltRecord{
		Fingerprint: uint64(entry.Fingerprint),
		Kind:        entry.Kind.String(),
		UpdatedAt:   entry.UpdatedAt.UnixMilli(),
	})
}

func decodeEntry(key, value []byte) (Entry, error) {
	id, err := uuid.FromBytes(key)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid document key: %w", err)
	}

	var rec boltRecord
	if err := cbor.Unmarshal(value, &rec); err != nil {
		return Entry{}, fmt.Errorf("invalid entry for %s: %w", id, err)
	}

	kind, err := ParseKind(rec.Kind)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		DocumentID:  id,
		Fingerprint: Fingerprint(rec.Fingerprint),
		Kind:        kind,
		UpdatedAt:   time.UnixMilli(rec.UpdatedAt),
	}, nil
}

// BoltStore keeps cache entries in a BoltDB bucket keyed by document id
type BoltStore struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// OpenBolt creates or opens the BoltDB file at path
func OpenBolt(path string, logger *slog.Logger) (*BoltStore, error) {
	logger = orDiscard(logger)

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to open cache database: %w", err))
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, storeErr("open", fmt.Errorf("failed to create cache bucket: %w", err))
	}

	logger.Debug("opened bolt cache store", "path", path)

	return &BoltStore{db: db, logger: logger}, nil
}

// Close closes the cache database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// Lookup returns the cached kind if the stored fingerprint matches fp
func (s *BoltStore) Lookup(ctx context.Context, id document.ID, fp Fingerprint) (Kind, bool, error) {
	entry, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Plain, false, nil
	}

	if err != nil {
		return Plain, false, err
	}

	if entry.Fingerprint != fp {
		return Plain, false, nil
	}

	return entry.Kind, true, nil
}

// Get returns the entry of a document, ErrNotFound if there is none
func (s *BoltStore) Get(_ context.Context, id document.ID) (*Entry, error) {
	var entry *Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get(id[:])
		if data == nil {
			return nil
		}

		decoded, err := decodeEntry(id[:], data)
		if err != nil {
			return err
		}

		entry = &decoded
		return nil
	})
	if err != nil {
		return nil, storeErr("get", err)
	}

	if entry == nil {
		return nil, ErrNotFound
	}

	return entry, nil
}

// Upsert replaces the entry of a document in a single transaction
func (s *BoltStore) Upsert(_ context.Context, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeEntry(entry)
		if err != nil {
			return err
		}

		return tx.Bucket([]byte(bucketName)).Put(entry.DocumentID[:], data)
	})

	return storeErr("upsert", err)
}

// Delete removes the entry of a document
func (s *BoltStore) Delete(_ context.Context, id document.ID) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete(id[:])
	})

	return storeErr("delete", err)
}

// List returns all entries ordered by document id
func (s *BoltStore) List(_ context.Context) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			entry, err := decodeEntry(k, v)
			if err != nil {
				return err
			}

			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, storeErr("list", err)
	}

	return entries, nil
}

// Clear removes all entries
func (s *BoltStore) Clear(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		// Recreate bucket
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})

	return storeErr("clear", err)
}
