package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/staged"
)

// Mode selects how the engine is driven.
type Mode string

const (
	// ModeEmbedded runs inside a larger package-manager session whose
	// in-memory pool must see enabled flags and priorities individually.
	ModeEmbedded Mode = "embedded"
	// ModeRefreshEnabled only refreshes the enabled repositories.
	ModeRefreshEnabled Mode = "refresh-enabled"
	ModeInteractive    Mode = "interactive"
)

// ParseMode accepts the three mode names.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeEmbedded, ModeRefreshEnabled, ModeInteractive:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want embedded, refresh-enabled or interactive)", s)
}

// Backend is the part of the package manager a write needs.
type Backend interface {
	ListRepositories(ctx context.Context) ([]record.Repository, error)
	ListServices(ctx context.Context) ([]record.Service, error)
	ReplaceRepositories(ctx context.Context, repos []record.Repository) error
	DeleteRepository(ctx context.Context, id int64) error
	RefreshRepository(ctx context.Context, id int64) error
	SetRepositoryEnabled(ctx context.Context, id int64, on bool) error
	SetRepositoryPriority(ctx context.Context, id int64, priority int) error
	AddService(ctx context.Context, svc record.Service) error
	UpdateService(ctx context.Context, svc record.Service) error
	DeleteService(ctx context.Context, alias string) error
	SaveAll(ctx context.Context) error
	LastError() string
}

// KeySaver persists signing-key trust once per write.
type KeySaver interface {
	Save(ctx context.Context) error
}

// Report is the aggregate outcome of a write. OK is false as soon as any
// step failed; Err joins every failure.
type Report struct {
	OK  bool
	Err error
	// Refreshed lists the repositories refreshed successfully.
	Refreshed []int64
}

type Engine struct {
	Backend Backend
	Keys    KeySaver
	Mode    Mode
	// RefreshNewlyEnabled refreshes repositories that became enabled in
	// this session.
	RefreshNewlyEnabled bool
	Logger              zerolog.Logger
}

// Adopt reconciles the session's working repositories with what the
// backend holds now.
func (e *Engine) Adopt(ctx context.Context, s *staged.Session) error {
	live, err := e.Backend.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}
	e.adopt(s, live)
	return nil
}

func (e *Engine) adopt(s *staged.Session, live []record.Repository) {
	working, notes := Adopt(AdoptInput{
		BaselineIDs: s.Repos.BaselineIDs(),
		Working:     s.Repos.Working(),
		Removed:     s.Removed,
		Live:        live,
	})
	for _, n := range notes {
		if n.Reason == Vanished {
			s.Repos.Forget(n.ID)
		}
		e.Logger.Info().Int64("id", n.ID).Str("alias", n.Alias).Str("reason", string(n.Reason)).Msg("reconciled repository")
	}
	s.Repos.ReplaceWorking(working)
}

// Write adopts live state, then applies the session to the backend. Every
// step runs even when an earlier one failed; nothing is rolled back. The
// session is not re-baselined; call Session.Commit when Report.OK.
func (e *Engine) Write(ctx context.Context, s *staged.Session) Report {
	live, err := e.Backend.ListRepositories(ctx)
	if err != nil {
		e.Logger.Error().Err(err).Msg("cannot read live repositories, nothing written")
		return Report{Err: fmt.Errorf("list repositories: %w", err)}
	}
	services, err := e.Backend.ListServices(ctx)
	if err != nil {
		e.Logger.Error().Err(err).Msg("cannot read live services, nothing written")
		return Report{Err: fmt.Errorf("list services: %w", err)}
	}
	e.adopt(s, live)

	liveAliases := make([]string, 0, len(services))
	for _, svc := range services {
		liveAliases = append(liveAliases, svc.Alias)
	}
	liveIDs := make([]int64, 0, len(live))
	for _, r := range live {
		liveIDs = append(liveIDs, r.ID)
	}
	actions := Plan(PlanInput{
		BaselineServices:    s.Services.Baseline(),
		WorkingServices:     s.Services.Working(),
		BaselineRepos:       s.Repos.Baseline(),
		WorkingRepos:        s.Repos.Working(),
		PendingDeletes:      s.PendingDeletes(),
		Live:                liveIDs,
		LiveServices:        liveAliases,
		Embedded:            e.Mode == ModeEmbedded,
		RefreshNewlyEnabled: e.RefreshNewlyEnabled,
	})

	report := Report{OK: true}
	var errs []error
	cascaded := make(map[int64]struct{})
	for _, a := range actions {
		if a.Op == OpDeleteRepository {
			if _, gone := cascaded[a.Repository.ID]; gone {
				e.Logger.Debug().Int64("id", a.Repository.ID).Msg("already removed with its service")
				continue
			}
		}
		if err := e.apply(ctx, a); err != nil {
			report.OK = false
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
			e.Logger.Error().Err(err).Str("action", a.String()).Str("backend", e.Backend.LastError()).Msg("write step failed")
			continue
		}
		switch a.Op {
		case OpDeleteService:
			for _, id := range a.Owned {
				cascaded[id] = struct{}{}
			}
		case OpRefreshRepository:
			report.Refreshed = append(report.Refreshed, a.Repository.ID)
		}
	}
	report.Err = errors.Join(errs...)
	e.Logger.Info().Bool("ok", report.OK).Int("actions", len(actions)).Msg("write finished")
	return report
}

func (e *Engine) apply(ctx context.Context, a Action) error {
	b := e.Backend
	switch a.Op {
	case OpDeleteService:
		return b.DeleteService(ctx, a.Service.Alias)
	case OpAddService:
		if a.Service.URL == "" {
			return fmt.Errorf("service %s: %w: empty", a.Service.Alias, record.ErrInvalidURL)
		}
		return b.AddService(ctx, a.Service)
	case OpUpdateService:
		return b.UpdateService(ctx, a.Service)
	case OpSetEnabled:
		return b.SetRepositoryEnabled(ctx, a.Repository.ID, a.Repository.Enabled)
	case OpSetPriority:
		return b.SetRepositoryPriority(ctx, a.Repository.ID, a.Repository.Priority)
	case OpReplaceRepositories:
		return b.ReplaceRepositories(ctx, a.Repositories)
	case OpDeleteRepository:
		return b.DeleteRepository(ctx, a.Repository.ID)
	case OpRefreshRepository:
		return b.RefreshRepository(ctx, a.Repository.ID)
	case OpSaveKeys:
		if e.Keys == nil {
			return nil
		}
		return e.Keys.Save(ctx)
	case OpSaveAll:
		return b.SaveAll(ctx)
	}
	return fmt.Errorf("unknown action %v", a.Op)
}
