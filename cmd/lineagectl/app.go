package main

import (
	"context"
	"errors"
	"io"
	"os"

	"lineagecore/internal/blob"
	"lineagecore/internal/config"
	"lineagecore/internal/core"
	"lineagecore/internal/identifier"
	"lineagecore/internal/logging"
	"lineagecore/pkg/domain"
)

// app holds the per-invocation wiring shared by subcommands.
type app struct {
	configDir string
	actor     string

	cfg    config.Config
	logger *logging.Logger
	store  core.PersistentStore
}

func (a *app) init() error {
	var extra []string
	if a.configDir != "" {
		extra = append(extra, a.configDir)
	}
	cfg, err := config.Load(extra...)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With("component", "lineagectl")
	if a.actor == "" {
		a.actor = os.Getenv("USER")
	}
	if a.actor == "" {
		a.actor = "lineagectl"
	}
	return nil
}

func (a *app) openStore(ctx context.Context) (core.PersistentStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := core.OpenPersistentStore(ctx, a.cfg, nil)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.logger.Debug("store opened", "driver", a.cfg.StorageDriver)
	return store, nil
}

func (a *app) service(ctx context.Context) (*core.Service, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	formats := map[domain.EntityType]identifier.Format{
		domain.EntityAccession: {Prefix: a.cfg.AccessionPrefix},
	}
	return core.NewService(store,
		core.WithLogger(a.logger),
		core.WithCodeFormats(formats),
		core.WithGenus(a.cfg.Genus),
	), nil
}

func (a *app) snapshotter(ctx context.Context) (core.Snapshotter, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	snap, ok := store.(core.Snapshotter)
	if !ok {
		return nil, errors.New("storage driver does not support snapshots")
	}
	return snap, nil
}

func (a *app) blobs(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, a.cfg)
}

func (a *app) actorContext(ctx context.Context) context.Context {
	return core.WithActor(ctx, a.actor)
}

func (a *app) close() error {
	var err error
	if closer, ok := a.store.(io.Closer); ok {
		err = closer.Close()
	}
	a.store = nil
	if a.logger != nil {
		a.logger.Sync()
	}
	return err
}
