package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/pkg/cache"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/storage"
)

const (
	reposDir    = "repos.d"
	servicesDir = "services.d"
	repoExt     = ".repo"
	serviceExt  = ".service"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("alias already exists")
)

// Opener gives access to the medium behind a repository or service URL.
type Opener func(ctx context.Context, url string) (storage.Backend, error)

// KeyImporter receives signing keys found while refreshing.
type KeyImporter interface {
	Import(source string, armored []byte) ([]string, error)
}

// Options wires optional collaborators into Local.
type Options struct {
	Open   Opener
	Cache  *cache.Cache
	Keys   KeyImporter
	Logger zerolog.Logger
}

// Local is a Manager keeping its configuration as TOML files below a
// storage root (repos.d/<alias>.repo, services.d/<alias>.service).
// Changes stay in memory until SaveAll.
type Local struct {
	store  storage.Backend
	open   Opener
	cache  *cache.Cache
	keys   KeyImporter
	logger zerolog.Logger

	repos    map[int64]record.Repository
	services map[string]record.Service
	nextID   int64

	// files maps what is on disk now, so SaveAll can drop stale files.
	repoFiles    map[string]struct{}
	serviceFiles map[string]struct{}

	lastErr string
}

var _ Manager = (*Local)(nil)

// OpenLocal loads the configuration found below store.
func OpenLocal(ctx context.Context, store storage.Backend, opts Options) (*Local, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	m := &Local{
		store:        store,
		open:         opts.Open,
		cache:        opts.Cache,
		keys:         opts.Keys,
		logger:       opts.Logger,
		repos:        make(map[int64]record.Repository),
		services:     make(map[string]record.Service),
		nextID:       1,
		repoFiles:    make(map[string]struct{}),
		serviceFiles: make(map[string]struct{}),
	}
	if m.open == nil {
		m.open = func(ctx context.Context, url string) (storage.Backend, error) {
			return storage.Open(ctx, url, storage.Options{})
		}
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Local) load(ctx context.Context) error {
	svcFiles, err := listOrEmpty(ctx, m.store, servicesDir)
	if err != nil {
		return fmt.Errorf("list %s: %w", servicesDir, err)
	}
	for _, p := range svcFiles {
		if !strings.HasSuffix(p, serviceExt) {
			continue
		}
		var svc record.Service
		if err := m.decode(ctx, p, &svc); err != nil {
			return err
		}
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if _, dup := m.services[svc.Alias]; dup {
			return fmt.Errorf("%s: service %s: %w", p, svc.Alias, ErrDuplicate)
		}
		m.services[svc.Alias] = svc
		m.serviceFiles[p] = struct{}{}
	}

	repoFiles, err := listOrEmpty(ctx, m.store, reposDir)
	if err != nil {
		return fmt.Errorf("list %s: %w", reposDir, err)
	}
	sort.Strings(repoFiles)
	var unnumbered []record.Repository
	for _, p := range repoFiles {
		if !strings.HasSuffix(p, repoExt) {
			continue
		}
		var repo record.Repository
		if err := m.decode(ctx, p, &repo); err != nil {
			return err
		}
		if err := repo.Validate(); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if repo.ServiceAlias != "" {
			if _, ok := m.services[repo.ServiceAlias]; !ok {
				return fmt.Errorf("%s: service %s: %w", p, repo.ServiceAlias, ErrNotFound)
			}
		}
		if m.aliasTaken(repo.Alias, 0) {
			return fmt.Errorf("%s: repository %s: %w", p, repo.Alias, ErrDuplicate)
		}
		m.repoFiles[p] = struct{}{}
		if _, clash := m.repos[repo.ID]; repo.ID <= 0 || clash {
			unnumbered = append(unnumbered, repo)
			continue
		}
		m.repos[repo.ID] = repo
		if repo.ID >= m.nextID {
			m.nextID = repo.ID + 1
		}
	}
	for _, repo := range unnumbered {
		repo.ID = m.allocID()
		m.repos[repo.ID] = repo
	}
	return nil
}

// decode reads one record file. Unknown keys are rejected.
func (m *Local) decode(ctx context.Context, p string, out any) error {
	data, err := m.store.ReadFile(ctx, p)
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse %s: %w", p, err)
	}
	return nil
}

func listOrEmpty(ctx context.Context, b storage.Backend, dir string) ([]string, error) {
	files, err := b.List(ctx, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

func (m *Local) allocID() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *Local) aliasTaken(alias string, except int64) bool {
	for id, r := range m.repos {
		if id != except && r.Alias == alias {
			return true
		}
	}
	return false
}

// fail remembers err for LastError and returns it.
func (m *Local) fail(err error) error {
	if err != nil {
		m.lastErr = err.Error()
	}
	return err
}

func (m *Local) LastError() string { return m.lastErr }

func repoFile(alias string) string    { return path.Join(reposDir, alias+repoExt) }
func serviceFile(alias string) string { return path.Join(servicesDir, alias+serviceExt) }

// SaveAll writes every record and removes files of deleted or renamed ones.
func (m *Local) SaveAll(ctx context.Context) error {
	var errs []error
	wantRepos := make(map[string]struct{}, len(m.repos))
	for _, repo := range m.sortedRepos() {
		p := repoFile(repo.Alias)
		wantRepos[p] = struct{}{}
		data, err := toml.Marshal(repo)
		if err == nil {
			err = m.store.WriteFile(ctx, p, data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
		}
	}
	wantServices := make(map[string]struct{}, len(m.services))
	for _, svc := range m.services {
		p := serviceFile(svc.Alias)
		wantServices[p] = struct{}{}
		data, err := toml.Marshal(svc)
		if err == nil {
			err = m.store.WriteFile(ctx, p, data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
		}
	}
	errs = append(errs, m.prune(ctx, m.repoFiles, wantRepos)...)
	errs = append(errs, m.prune(ctx, m.serviceFiles, wantServices)...)
	m.repoFiles = wantRepos
	m.serviceFiles = wantServices
	if err := errors.Join(errs...); err != nil {
		return m.fail(fmt.Errorf("save configuration: %w", err))
	}
	m.logger.Debug().Int("repositories", len(m.repos)).Int("services", len(m.services)).Msg("configuration saved")
	return nil
}

func (m *Local) prune(ctx context.Context, have, want map[string]struct{}) []error {
	var errs []error
	for p := range have {
		if _, keep := want[p]; keep {
			continue
		}
		if err := m.store.DeleteFile(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", p, err))
			want[p] = struct{}{}
		}
	}
	return errs
}

func (m *Local) sortedRepos() []record.Repository {
	out := make([]record.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
