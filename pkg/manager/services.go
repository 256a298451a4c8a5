package manager

import (
	"context"
	"fmt"
	"sort"

	"github.com/e2llm/repoconf/pkg/metadata"
	"github.com/e2llm/repoconf/pkg/record"
)

func (m *Local) ListServices(ctx context.Context) ([]record.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]record.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (m *Local) GetService(ctx context.Context, alias string) (record.Service, error) {
	if err := ctx.Err(); err != nil {
		return record.Service{}, err
	}
	svc, ok := m.services[alias]
	if !ok {
		return record.Service{}, m.fail(fmt.Errorf("service %s: %w", alias, ErrNotFound))
	}
	return svc, nil
}

// AddService registers an index service and creates the repositories its
// repoindex.xml lists. Plugin services are registered as they are.
func (m *Local) AddService(ctx context.Context, svc record.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if svc.URL == "" && !svc.IsPlugin() {
		return m.fail(fmt.Errorf("service %s: %w: empty", svc.Alias, record.ErrInvalidURL))
	}
	if err := svc.Validate(); err != nil {
		return m.fail(err)
	}
	if _, dup := m.services[svc.Alias]; dup {
		return m.fail(fmt.Errorf("service %s: %w", svc.Alias, ErrDuplicate))
	}
	var repos []record.Repository
	if !svc.IsPlugin() {
		var err error
		if repos, err = m.indexRepositories(ctx, svc); err != nil {
			return m.fail(err)
		}
	}
	m.services[svc.Alias] = svc
	for _, repo := range repos {
		repo.ID = m.allocID()
		m.repos[repo.ID] = repo
	}
	m.logger.Info().Str("alias", svc.Alias).Int("repositories", len(repos)).Msg("service added")
	return nil
}

// indexRepositories reads the service index and maps it to repositories
// owned by svc. Aliases are prefixed with the service alias.
func (m *Local) indexRepositories(ctx context.Context, svc record.Service) ([]record.Repository, error) {
	b, err := m.open(ctx, svc.URL)
	if err != nil {
		return nil, fmt.Errorf("open service %s: %w", svc.Alias, err)
	}
	data, err := b.ReadFile(ctx, metadata.RepoIndexPath)
	if err != nil {
		return nil, fmt.Errorf("read index of %s: %w", svc.Alias, err)
	}
	idx, err := metadata.ParseRepoIndex(data)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.Alias, err)
	}
	var out []record.Repository
	for _, entry := range idx.Repos {
		url := entry.URL
		if url == "" {
			url = record.Join(svc.URL, entry.Path)
		}
		name := entry.Name
		if name == "" {
			name = entry.Alias
		}
		repo := record.Repository{
			Alias:        svc.Alias + ":" + entry.Alias,
			Name:         name,
			Enabled:      svc.Enabled && entry.EnabledOr(true),
			Autorefresh:  entry.AutorefreshOr(svc.Autorefresh),
			Priority:     entry.PriorityOr(record.DefaultPriority),
			ServiceAlias: svc.Alias,
			URL:          url,
			Type:         record.TypeRPMMD,
		}
		if err := repo.Validate(); err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.Alias, err)
		}
		if m.aliasTaken(repo.Alias, 0) {
			return nil, fmt.Errorf("service %s: repository %s: %w", svc.Alias, repo.Alias, ErrDuplicate)
		}
		out = append(out, repo)
	}
	return out, nil
}

// UpdateService stores the editable properties of an existing service.
func (m *Local) UpdateService(ctx context.Context, svc record.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, ok := m.services[svc.Alias]
	if !ok {
		return m.fail(fmt.Errorf("service %s: %w", svc.Alias, ErrNotFound))
	}
	current.Enabled = svc.Enabled
	current.Autorefresh = svc.Autorefresh
	if svc.Name != "" {
		current.Name = svc.Name
	}
	if svc.URL != "" {
		current.URL = svc.URL
	}
	m.services[svc.Alias] = current
	return nil
}

// DeleteService removes the service and every repository it owns.
func (m *Local) DeleteService(ctx context.Context, alias string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.services[alias]; !ok {
		return m.fail(fmt.Errorf("service %s: %w", alias, ErrNotFound))
	}
	delete(m.services, alias)
	removed := 0
	for id, repo := range m.repos {
		if repo.ServiceAlias == alias {
			delete(m.repos, id)
			m.dropCache(ctx, repo.Alias)
			removed++
		}
	}
	m.logger.Info().Str("alias", alias).Int("repositories", removed).Msg("service deleted")
	return nil
}
