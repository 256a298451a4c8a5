package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/e2llm/repoconf/pkg/record"
)

// LicensePath is the file a repository may ship to require acceptance.
const LicensePath = "license.txt"

func (m *Local) ListRepositories(ctx context.Context) ([]record.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.sortedRepos(), nil
}

func (m *Local) repo(id int64) (record.Repository, error) {
	r, ok := m.repos[id]
	if !ok {
		return record.Repository{}, fmt.Errorf("repository %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// AddRepository assigns an id to repo and adds it to the configuration.
func (m *Local) AddRepository(ctx context.Context, repo record.Repository) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := repo.Validate(); err != nil {
		return 0, m.fail(err)
	}
	if m.aliasTaken(repo.Alias, 0) {
		return 0, m.fail(fmt.Errorf("repository %s: %w", repo.Alias, ErrDuplicate))
	}
	if repo.ServiceAlias != "" {
		if _, ok := m.services[repo.ServiceAlias]; !ok {
			return 0, m.fail(fmt.Errorf("service %s: %w", repo.ServiceAlias, ErrNotFound))
		}
	}
	repo.ID = m.allocID()
	repo.DoRefresh = false
	m.repos[repo.ID] = repo
	m.logger.Info().Int64("id", repo.ID).Str("alias", repo.Alias).Str("url", repo.URL).Msg("repository added")
	return repo.ID, nil
}

// ReplaceRepositories overwrites the stored properties of every listed
// repository. Repositories not listed are left alone; removal goes through
// DeleteRepository. All entries are attempted even if some fail.
func (m *Local) ReplaceRepositories(ctx context.Context, repos []record.Repository) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	for _, repo := range repos {
		current, err := m.repo(repo.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := repo.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if repo.ServiceAlias != current.ServiceAlias {
			errs = append(errs, fmt.Errorf("repository %s: service cannot change", current.Alias))
			continue
		}
		if m.aliasTaken(repo.Alias, repo.ID) {
			errs = append(errs, fmt.Errorf("repository %s: %w", repo.Alias, ErrDuplicate))
			continue
		}
		repo.DoRefresh = false
		m.repos[repo.ID] = repo
	}
	if err := errors.Join(errs...); err != nil {
		return m.fail(fmt.Errorf("replace repositories: %w", err))
	}
	return nil
}

func (m *Local) DeleteRepository(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := m.repo(id)
	if err != nil {
		return m.fail(err)
	}
	delete(m.repos, id)
	m.dropCache(ctx, repo.Alias)
	m.logger.Info().Int64("id", id).Str("alias", repo.Alias).Msg("repository deleted")
	return nil
}

func (m *Local) SetRepositoryEnabled(ctx context.Context, id int64, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := m.repo(id)
	if err != nil {
		return m.fail(err)
	}
	repo.Enabled = on
	m.repos[id] = repo
	return nil
}

// SetRepositoryPriority forwards the value as given. Range checking is the
// caller's job.
func (m *Local) SetRepositoryPriority(ctx context.Context, id int64, priority int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := m.repo(id)
	if err != nil {
		return m.fail(err)
	}
	repo.Priority = priority
	m.repos[id] = repo
	return nil
}

// RepositoryLicense returns the license text shipped with the repository,
// or "" when there is none.
func (m *Local) RepositoryLicense(ctx context.Context, id int64) (string, error) {
	repo, err := m.repo(id)
	if err != nil {
		return "", m.fail(err)
	}
	b, err := m.open(ctx, record.Join(repo.URL, repo.ProductDir))
	if err != nil {
		return "", m.fail(fmt.Errorf("open %s: %w", repo.Alias, err))
	}
	data, err := b.ReadFile(ctx, LicensePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", m.fail(fmt.Errorf("read license of %s: %w", repo.Alias, err))
	}
	return strings.TrimSpace(string(data)), nil
}

func (m *Local) dropCache(ctx context.Context, alias string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Drop(ctx, alias); err != nil {
		m.logger.Warn().Err(err).Str("alias", alias).Msg("drop cached metadata")
	}
}
