package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/docrender/internal/cache"
	"github.com/Norgate-AV/docrender/internal/config"
	"github.com/Norgate-AV/docrender/internal/document"
	"github.com/Norgate-AV/docrender/internal/library"
	"github.com/Norgate-AV/docrender/internal/pipeline"
	"github.com/Norgate-AV/docrender/internal/render"
	"github.com/Norgate-AV/docrender/internal/utils"
)

// app is everything a command needs, opened from the loaded configuration
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	library   *library.Library
	store     cache.Store
	artifacts *cache.Artifacts
	renderer  *render.Coordinator
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.NewLoader().LoadForCommand(cmd)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	logger.Debug("configuration loaded",
		"documents", cfg.DocumentsDir,
		"cache", cfg.CacheDir,
		"store", cfg.StoreDriver,
		"markdown", cfg.MarkdownEngine,
		"timeout", cfg.Timeout,
	)

	lib, err := library.New(cfg.DocumentsDir, logger)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.StoreDriver, cfg.CacheDir, logger)
	if err != nil {
		return nil, err
	}

	artifacts, err := cache.NewArtifacts(cfg.CacheDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	pipelines := pipeline.New(cfg.Pipeline(), logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		library:   lib,
		store:     store,
		artifacts: artifacts,
		renderer:  render.New(lib, store, artifacts, pipelines, logger),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// knownIDs lists the ids of every document in the library
func (a *app) knownIDs(ctx context.Context) ([]document.ID, error) {
	metas, err := a.library.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]document.ID, len(metas))
	for i, meta := range metas {
		ids[i] = meta.ID
	}

	return ids, nil
}

// resolve turns command line arguments into document ids
func (a *app) resolve(ctx context.Context, args []string) ([]document.ID, error) {
	known, err := a.knownIDs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]document.ID, 0, len(args))
	var errs []error

	for _, arg := range args {
		id, err := utils.ResolveID(arg, known)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		ids = append(ids, id)
	}

	return ids, errors.Join(errs...)
}
