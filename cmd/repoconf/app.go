package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/pkg/cache"
	"github.com/e2llm/repoconf/pkg/config"
	"github.com/e2llm/repoconf/pkg/interact"
	"github.com/e2llm/repoconf/pkg/keyring"
	"github.com/e2llm/repoconf/pkg/manager"
	"github.com/e2llm/repoconf/pkg/media"
	"github.com/e2llm/repoconf/pkg/products"
	"github.com/e2llm/repoconf/pkg/reconcile"
	"github.com/e2llm/repoconf/pkg/staged"
	"github.com/e2llm/repoconf/pkg/storage"
	"github.com/e2llm/repoconf/pkg/workflow"
)

// app wires the collaborators for one invocation.
type app struct {
	cfg    config.Config
	mode   reconcile.Mode
	log    zerolog.Logger
	out    io.Writer
	store  storage.Backend
	cache  *cache.Cache
	keys   *keyring.Keyring
	mgr    *manager.Local
	engine *reconcile.Engine
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger, out io.Writer) (*app, error) {
	mode, err := reconcile.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	opts := storage.Options{S3Endpoint: cfg.S3Endpoint}
	store, err := storage.Open(ctx, cfg.StateRoot, opts)
	if err != nil {
		return nil, fmt.Errorf("open state root: %w", err)
	}

	a := &app{cfg: cfg, mode: mode, log: log, out: out, store: store}
	if cfg.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		if a.cache, err = cache.Open(cfg.CachePath); err != nil {
			return nil, err
		}
	}
	if a.keys, err = keyring.Open(ctx, store, cfg.KeyringPath); err != nil {
		a.close()
		return nil, err
	}
	a.mgr, err = manager.OpenLocal(ctx, store, manager.Options{
		Open: func(ctx context.Context, url string) (storage.Backend, error) {
			return storage.Open(ctx, url, opts)
		},
		Cache:  a.cache,
		Keys:   a.keys,
		Logger: log.With().Str("component", "manager").Logger(),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = &reconcile.Engine{
		Backend:             a.mgr,
		Keys:                a.keys,
		Mode:                mode,
		RefreshNewlyEnabled: cfg.RefreshNewlyEnabled,
		Logger:              log.With().Str("component", "engine").Logger(),
	}
	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close cache")
		}
	}
}

// session snapshots the backend as a fresh staged session.
func (a *app) session(ctx context.Context) (*staged.Session, error) {
	repos, err := a.mgr.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	services, err := a.mgr.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	return staged.NewSession(repos, services), nil
}

func (a *app) workflow(prompt interact.Prompter) *workflow.Workflow {
	return &workflow.Workflow{
		Backend:           a.mgr,
		Media:             &media.StorageAttacher{Options: storage.Options{S3Endpoint: a.cfg.S3Endpoint}, Logger: a.log},
		Products:          products.Discoverer{},
		Prompt:            prompt,
		Vars:              workflow.NewVars(a.cfg.Vars.Releasever, a.cfg.Vars.Basearch),
		AutorefreshRemote: a.cfg.AutorefreshRemote,
		Logger:            a.log.With().Str("component", "workflow").Logger(),
	}
}

// commit writes s. On failure the operator may retry; declining discards
// the staged edits. A nil prompt never retries.
func (a *app) commit(ctx context.Context, s *staged.Session, prompt interact.Prompter) error {
	for {
		report := a.engine.Write(ctx, s)
		if report.OK {
			s.Commit()
			return nil
		}
		q := interact.Question{Kind: interact.RetryWrite, Detail: a.mgr.LastError()}
		if prompt == nil || !prompt.Confirm(ctx, q) {
			s.Discard()
			return fmt.Errorf("write failed: %w", report.Err)
		}
	}
}
