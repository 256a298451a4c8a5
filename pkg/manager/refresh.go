package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/e2llm/repoconf/pkg/inspector"
	"github.com/e2llm/repoconf/pkg/metadata"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/storage"
)

// ProbeService reports whether url serves a repoindex.xml.
func (m *Local) ProbeService(ctx context.Context, url string) (bool, error) {
	b, err := m.open(ctx, url)
	if err != nil {
		return false, m.fail(err)
	}
	ok, err := b.Exists(ctx, metadata.RepoIndexPath)
	if err != nil {
		return false, m.fail(fmt.Errorf("probe service %s: %w", url, err))
	}
	return ok, nil
}

// ProbeRepository recognizes rpm-md repositories. Plain directories are not
// detected here; callers decide whether to fall back to them.
func (m *Local) ProbeRepository(ctx context.Context, url, dir string) (string, error) {
	b, err := m.open(ctx, record.Join(url, dir))
	if err != nil {
		return "", m.fail(err)
	}
	ok, err := b.Exists(ctx, metadata.RepoMDPath)
	if err != nil {
		return "", m.fail(fmt.Errorf("probe %s: %w", record.Join(url, dir), err))
	}
	if ok {
		return record.TypeRPMMD, nil
	}
	return "", nil
}

// RefreshRepository downloads and verifies the repository metadata and
// stores the package list in the cache.
func (m *Local) RefreshRepository(ctx context.Context, id int64) error {
	repo, err := m.repo(id)
	if err != nil {
		return m.fail(err)
	}
	b, err := m.open(ctx, record.Join(repo.URL, repo.ProductDir))
	if err != nil {
		return m.fail(fmt.Errorf("refresh %s: %w", repo.Alias, err))
	}

	var pkgs []metadata.Package
	var revision string
	switch repo.Type {
	case record.TypePlainDir:
		pkgs, err = m.scanPlainDir(ctx, b)
	default:
		pkgs, revision, err = m.loadRPMMD(ctx, b, repo.Alias)
	}
	if err != nil {
		return m.fail(fmt.Errorf("refresh %s: %w", repo.Alias, err))
	}

	if m.cache != nil {
		if err := m.cache.Store(ctx, repo.Alias, revision, pkgs, time.Now().UTC()); err != nil {
			return m.fail(fmt.Errorf("cache %s: %w", repo.Alias, err))
		}
	}
	m.logger.Info().Str("alias", repo.Alias).Int("packages", len(pkgs)).Str("revision", revision).Msg("repository refreshed")
	return nil
}

func (m *Local) loadRPMMD(ctx context.Context, b storage.Backend, alias string) ([]metadata.Package, string, error) {
	md, err := metadata.LoadRepoMD(ctx, b)
	if err != nil {
		return nil, "", fmt.Errorf("load repomd.xml: %w", err)
	}
	primary := md.Find("primary")
	if primary == nil {
		return nil, "", fmt.Errorf("repomd.xml has no primary metadata")
	}
	payload, err := metadata.ReadAndVerify(ctx, b, *primary)
	if err != nil {
		return nil, "", fmt.Errorf("read primary: %w", err)
	}
	pkgs, err := metadata.ParsePrimary(payload)
	if err != nil {
		return nil, "", err
	}
	m.importKey(ctx, b, alias)
	return pkgs, md.Revision, nil
}

// importKey hands repomd.xml.key to the key manager. A missing or bad key is
// not a refresh failure.
func (m *Local) importKey(ctx context.Context, b storage.Backend, alias string) {
	if m.keys == nil {
		return
	}
	data, err := b.ReadFile(ctx, metadata.RepoMDKeyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("alias", alias).Msg("read signing key")
		return
	}
	added, err := m.keys.Import(alias, data)
	if err != nil {
		m.logger.Warn().Err(err).Str("alias", alias).Msg("import signing key")
		return
	}
	for _, fp := range added {
		m.logger.Info().Str("alias", alias).Str("fingerprint", fp).Msg("signing key imported")
	}
}

// scanPlainDir reads the header of every RPM below the medium root.
func (m *Local) scanPlainDir(ctx context.Context, b storage.Backend) ([]metadata.Package, error) {
	paths, err := b.ListRPMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rpms: %w", err)
	}
	pkgs := make([]metadata.Package, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := b.ReadFile(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		pkg, err := inspector.InspectRPM(p, data)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable rpm")
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}
