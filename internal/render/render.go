// Package render coordinates cached document renders.
//
// Render fingerprints the document folder, serves the cached artifact when
// the stored fingerprint still matches, and otherwise runs the document's
// pipeline exactly once per (document, fingerprint) no matter how many
// callers ask concurrently. Tool failures are cached as a plain-text report
// so they are not retried until the document changes.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/pipeline"
)

// Runner runs the pipeline matching a document
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Output, error)
}

// Result is a rendered document
type Result struct {
	ID          document.ID
	Path        string
	Kind        cache.Kind
	Fingerprint cache.Fingerprint

	// Cached is true when the result was served without waiting on a pipeline
	Cached bool
}

// Coordinator serves renders from the cache and runs pipelines on a miss
type Coordinator struct {
	docs         document.Library
	fingerprints *cache.Fingerprinter
	store        cache.Store
	artifacts    *cache.Artifacts
	pipelines    Runner
	logger       *slog.Logger

	// flights holds the in-flight renders keyed by document and fingerprint
	flights singleflight.Group

	// commits serializes writes of the row and artifact of one document
	commits keyedMutex
}

// New creates a coordinator
func New(docs document.Library, store cache.Store, artifacts *cache.Artifacts, pipelines Runner, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Coordinator{
		docs:         docs,
		fingerprints: cache.NewFingerprinter(docs),
		store:        store,
		artifacts:    artifacts,
		pipelines:    pipelines,
		logger:       logger,
	}
}

func flightKey(id document.ID, fp cache.Fingerprint) string {
	return id.String() + "/" + fp.String()
}

// Render returns the artifact of a document, rendering it if the cached
// one is missing or stale.
//
// A pipeline run is not cancelled when ctx is; the caller stops waiting
// but the render completes and is cached for the next request.
func (c *Coordinator) Render(ctx context.Context, id document.ID) (*Result, error) {
	fp, err := c.fingerprint(ctx, id)
	if err != nil {
		return nil, err
	}

	res, ok, err := c.lookup(ctx, id, fp)
	if err != nil {
		return nil, err
	}

	if ok {
		res.Cached = true
		c.logger.Debug("cache hit", "id", id, "fingerprint", fp, "kind", res.Kind)
		return res, nil
	}

	flight := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flightKey(id, fp), func() (any, error) {
		return c.compute(flight, id, fp)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}

		// Waiters share the flight's value; hand each one its own copy
		res := *r.Val.(*Result)
		return &res, nil
	}
}

// Cached reports whether a valid cached render exists for the document's
// current state, without rendering
func (c *Coordinator) Cached(ctx context.Context, id document.ID) (bool, error) {
	fp, err := c.fingerprint(ctx, id)
	if err != nil {
		return false, err
	}

	_, ok, err := c.lookup(ctx, id, fp)
	return ok, err
}

// Forget removes the cached render of a document. Used when a document is deleted.
func (c *Coordinator) Forget(ctx context.Context, id document.ID) error {
	unlock := c.commits.Lock(id)
	defer unlock()

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	if err := c.artifacts.Remove(id); err != nil {
		return err
	}

	c.logger.Debug("forgot cached render", "id", id)

	return nil
}

// Outcome is the result of rendering one document in RenderAll
type Outcome struct {
	ID     document.ID
	Result *Result
	Err    error
}

// RenderAll renders documents with at most limit renders running at once.
// Failures are reported per document; the returned error is only set when
// ctx ends before every document was attempted.
func (c *Coordinator) RenderAll(ctx context.Context, ids []document.ID, limit int) ([]Outcome, error) {
	outcomes := make([]Outcome, len(ids))

	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			res, err := c.Render(ctx, id)
			outcomes[i] = Outcome{ID: id, Result: res, Err: err}
			return nil
		})
	}

	_ = g.Wait()

	return outcomes, ctx.Err()
}

// Stats summarises the cache
func (c *Coordinator) Stats(ctx context.Context) (*cache.Stats, error) {
	return cache.Collect(ctx, c.store, c.artifacts)
}

// Recover repairs the cache after an unclean shutdown and drops renders of
// documents that no longer exist. It must run before renders start, as it
// removes artifacts whose row is mid-commit.
func (c *Coordinator) Recover(ctx context.Context) error {
	dropped, removed, err := cache.Recover(ctx, c.store, c.artifacts, c.logger)
	if err != nil {
		return fmt.Errorf("failed to recover cache: %w", err)
	}

	entries, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover cache: %w", err)
	}

	for _, entry := range entries {
		ok, err := c.docs.Exists(ctx, entry.DocumentID)
		if err != nil {
			return fmt.Errorf("failed to check document %s: %w", entry.DocumentID, err)
		}

		if ok {
			continue
		}

		if err := c.Forget(ctx, entry.DocumentID); err != nil {
			return err
		}

		dropped++
	}

	if dropped > 0 || removed > 0 {
		c.logger.Info("recovered render cache", "dropped_entries", dropped, "removed_files", removed)
	}

	return nil
}

// Clear drops every cached render
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return err
	}

	return c.artifacts.Clear()
}

func (c *Coordinator) fingerprint(ctx context.Context, id document.ID) (cache.Fingerprint, error) {
	ok, err := c.docs.Exists(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to check document %s: %w", id, err)
	}

	if !ok {
		return 0, fmt.Errorf("%w: %s", document.ErrDocumentNotFound, id)
	}

	return c.fingerprints.Fingerprint(ctx, id)
}

// lookup returns the cached result for fp. A row whose artifact has gone
// missing is dropped and treated as a miss.
func (c *Coordinator) lookup(ctx context.Context, id document.ID, fp cache.Fingerprint) (*Result, bool, error) {
	kind, ok, err := c.store.Lookup(ctx, id, fp)
	if err != nil || !ok {
		return nil, false, err
	}

	if !c.artifacts.Exists(id) {
		c.logger.Warn("cache entry without artifact, rendering again", "id", id, "fingerprint", fp)

		if err := c.store.Delete(ctx, id); err != nil {
			return nil, false, err
		}

		return nil, false, nil
	}

	return &Result{ID: id, Path: c.artifacts.Path(id), Kind: kind, Fingerprint: fp}, true, nil
}

// compute runs inside the flight for (id, fp)
func (c *Coordinator) compute(ctx context.Context, id document.ID, fp cache.Fingerprint) (*Result, error) {
	// A flight for this key may have committed between our lookup and registration
	if res, ok, err := c.lookup(ctx, id, fp); err != nil || ok {
		return res, err
	}

	meta, err := c.docs.Meta(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %w", id, err)
	}

	in := pipeline.Input{
		Meta:   meta,
		Folder: c.docs.FolderPath(id),
		File:   c.docs.FilePath(meta),
	}

	start := time.Now()
	out, err := c.pipelines.Run(ctx, in)

	var kind cache.Kind
	switch {
	case err == nil:
		defer out.Close()

		kind = out.Kind
		err = c.commit(ctx, id, fp, kind, out.Log, func() error {
			return c.artifacts.Import(id, out.Path)
		})

	case pipeline.IsRecoverable(err):
		report := pipeline.Report(err)
		c.logger.Warn("render failed, caching error report", "id", id, "type", meta.Type, "error", err)

		kind = cache.Plain
		err = c.commit(ctx, id, fp, kind, []byte(report), func() error {
			return c.artifacts.WriteBytes(id, []byte(report))
		})

	default:
		return nil, fmt.Errorf("failed to render %s: %w", id, err)
	}

	if err != nil {
		return nil, err
	}

	c.logger.Info("rendered document",
		"id", id,
		"type", meta.Type,
		"kind", kind,
		"fingerprint", fp,
		"duration", time.Since(start),
	)

	stored, ok, err := c.store.Lookup(ctx, id, fp)
	if err != nil {
		return nil, err
	}

	if ok {
		kind = stored
	} else {
		// Overwritten by a commit for a newer fingerprint
		c.logger.Debug("render superseded", "id", id, "fingerprint", fp)
	}

	return &Result{ID: id, Path: c.artifacts.Path(id), Kind: kind, Fingerprint: fp}, nil
}

// commit replaces the cached render of a document. The row is removed
// before the artifact changes and written after, so a row never points at
// bytes from a different render, even across a crash.
func (c *Coordinator) commit(ctx context.Context, id document.ID, fp cache.Fingerprint, kind cache.Kind, log []byte, write func() error) error {
	unlock := c.commits.Lock(id)
	defer unlock()

	// The document may have been deleted and forgotten while the pipeline ran
	ok, err := c.docs.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check document %s: %w", id, err)
	}

	if !ok {
		return fmt.Errorf("%w: %s deleted during render", document.ErrDocumentNotFound, id)
	}

	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	if err := write(); err != nil {
		return err
	}

	if len(log) > 0 {
		if err := c.artifacts.WriteLog(id, log); err != nil {
			c.logger.Warn("failed to write render log", "id", id, "error", err)
		}
	} else if err := os.Remove(c.artifacts.LogPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove stale render log", "id", id, "error", err)
	}

	return c.store.Upsert(ctx, cache.Entry{
		DocumentID:  id,
		Fingerprint: fp,
		Kind:        kind,
		UpdatedAt:   time.Now(),
	})
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, document.ErrDocumentNotFound)
}
