package manager

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/internal/testutil/repofixture"
	"github.com/e2llm/repoconf/pkg/cache"
	"github.com/e2llm/repoconf/pkg/metadata"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/storage"
)

func newLocal(t *testing.T, store storage.Backend, opts Options) *Local {
	t.Helper()
	opts.Logger = zerolog.Nop()
	m, err := OpenLocal(context.Background(), store, opts)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	return m
}

func TestLoadRecords(t *testing.T) {
	store := storage.NewFSBackend(t.TempDir())
	repofixture.WriteFile(t, store, "services.d/scc.service", []byte(`
alias = "scc"
name = "Customer Center"
url = ""
enabled = true
autorefresh = true
type = "plugin"
`))
	repofixture.WriteFile(t, store, "repos.d/base.repo", []byte(`
id = 4
alias = "base"
name = "Basesystem"
enabled = true
autorefresh = true
priority = 99
keep_packages = false
service = "scc"
url = "https://updates.example.com/base"
`))
	repofixture.WriteFile(t, store, "repos.d/oss.repo", []byte(`
alias = "oss"
name = "Main"
enabled = false
autorefresh = false
priority = 99
keep_packages = false
url = "https://download.example.org/oss"
type = "rpm-md"
`))
	m := newLocal(t, store, Options{})
	repos, err := m.ListRepositories(context.Background())
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repositories, got %d", len(repos))
	}
	if repos[0].ID != 4 || repos[0].Alias != "base" {
		t.Fatalf("unexpected first repository %+v", repos[0])
	}
	if repos[1].ID != 5 || repos[1].Alias != "oss" {
		t.Fatalf("unnumbered repository should get next id, got %+v", repos[1])
	}
	svc, err := m.GetService(context.Background(), "scc")
	if err != nil || !svc.IsPlugin() {
		t.Fatalf("GetService = %+v, %v", svc, err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	store := storage.NewFSBackend(t.TempDir())
	repofixture.WriteFile(t, store, "repos.d/oss.repo", []byte(`
alias = "oss"
url = "https://download.example.org/oss"
gpgcheck = true
`))
	if _, err := OpenLocal(context.Background(), store, Options{Logger: zerolog.Nop()}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsDanglingService(t *testing.T) {
	store := storage.NewFSBackend(t.TempDir())
	repofixture.WriteFile(t, store, "repos.d/x.repo", []byte(`
alias = "x"
url = "https://example.org/x"
service = "gone"
`))
	_, err := OpenLocal(context.Background(), store, Options{Logger: zerolog.Nop()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryLifecycleAndSave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFSBackend(t.TempDir())
	m := newLocal(t, store, Options{})

	id, err := m.AddRepository(ctx, record.Repository{Alias: "oss", URL: "http://x/oss", Priority: 99, Enabled: true})
	if err != nil {
		t.Fatalf("AddRepository: %v", err)
	}
	if _, err := m.AddRepository(ctx, record.Repository{Alias: "oss", URL: "http://x/other", Priority: 99}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if !strings.Contains(m.LastError(), "already exists") {
		t.Fatalf("LastError = %q", m.LastError())
	}
	id2, _ := m.AddRepository(ctx, record.Repository{Alias: "extra", URL: "http://x/extra", Priority: 99})

	err = m.ReplaceRepositories(ctx, []record.Repository{
		{ID: id, Alias: "oss-renamed", URL: "http://x/oss", Priority: 10, Enabled: false, KeepPackages: true},
		{ID: 999, Alias: "ghost", URL: "http://x/ghost"},
	})
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
	repos, _ := m.ListRepositories(ctx)
	if repos[0].Alias != "oss-renamed" || repos[0].Priority != 10 || !repos[0].KeepPackages {
		t.Fatalf("known entry should still be applied: %+v", repos[0])
	}

	if err := m.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := m.DeleteRepository(ctx, id2); err != nil {
		t.Fatalf("DeleteRepository: %v", err)
	}
	if err := m.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	files, _ := store.List(ctx, "repos.d")
	if len(files) != 1 || files[0] != "repos.d/oss-renamed.repo" {
		t.Fatalf("unexpected files on disk %v", files)
	}

	reopened := newLocal(t, store, Options{})
	repos, _ = reopened.ListRepositories(ctx)
	if len(repos) != 1 || repos[0].ID != id || repos[0].Alias != "oss-renamed" {
		t.Fatalf("reloaded %+v", repos)
	}
}

func TestServiceAddAndCascadeDelete(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewFSBackend(t.TempDir())
	idx, _ := metadata.MarshalRepoIndex(metadata.RepoIndex{Repos: []metadata.RepoIndexRepo{
		{Alias: "updates", Name: "Updates", Path: "updates", Priority: "20"},
		{Alias: "pool", URL: "http://mirror/pool", Enabled: "false"},
	}})
	repofixture.WriteFile(t, medium, metadata.RepoIndexPath, idx)

	m := newLocal(t, storage.NewFSBackend(t.TempDir()), Options{})
	svcURL := "dir://" + medium.Root()
	ok, err := m.ProbeService(ctx, svcURL)
	if err != nil || !ok {
		t.Fatalf("ProbeService = %v, %v", ok, err)
	}
	if err := m.AddService(ctx, record.Service{Alias: "ris", URL: svcURL, Enabled: true, Type: record.ServiceRIS}); err != nil {
		t.Fatalf("AddService: %v", err)
	}
	repos, _ := m.ListRepositories(ctx)
	if len(repos) != 2 {
		t.Fatalf("expected 2 service repositories, got %+v", repos)
	}
	if repos[0].Alias != "ris:updates" || repos[0].Priority != 20 || repos[0].URL != svcURL+"/updates" || !repos[0].Enabled {
		t.Fatalf("unexpected %+v", repos[0])
	}
	if repos[1].Enabled || repos[1].ServiceAlias != "ris" {
		t.Fatalf("unexpected %+v", repos[1])
	}

	if err := m.AddService(ctx, record.Service{Alias: "empty", Type: record.ServiceRIS}); !errors.Is(err, record.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for empty url, got %v", err)
	}

	if err := m.UpdateService(ctx, record.Service{Alias: "ris", Enabled: false, Autorefresh: true}); err != nil {
		t.Fatalf("UpdateService: %v", err)
	}
	svc, _ := m.GetService(ctx, "ris")
	if svc.Enabled || !svc.Autorefresh || svc.URL != svcURL {
		t.Fatalf("unexpected service after update %+v", svc)
	}

	if err := m.DeleteService(ctx, "ris"); err != nil {
		t.Fatalf("DeleteService: %v", err)
	}
	repos, _ = m.ListRepositories(ctx)
	if len(repos) != 0 {
		t.Fatalf("service repositories should be gone, got %+v", repos)
	}
	if err := m.DeleteService(ctx, "ris"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshRPMMDIntoCache(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewFSBackend(t.TempDir())
	repofixture.WriteRPMMD(t, medium, "", []metadata.Package{
		{Name: "zypper", Arch: "x86_64", Version: "1.14", Release: "1", Location: "zypper.rpm"},
	})
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	m := newLocal(t, storage.NewFSBackend(t.TempDir()), Options{Cache: c})
	url := "dir://" + medium.Root()
	typ, err := m.ProbeRepository(ctx, url, "")
	if err != nil || typ != record.TypeRPMMD {
		t.Fatalf("ProbeRepository = %q, %v", typ, err)
	}
	if typ, _ := m.ProbeRepository(ctx, url, "missing"); typ != "" {
		t.Fatalf("ProbeRepository on empty dir = %q", typ)
	}
	id, _ := m.AddRepository(ctx, record.Repository{Alias: "local", URL: url, Priority: 99, Type: record.TypeRPMMD})
	if err := m.RefreshRepository(ctx, id); err != nil {
		t.Fatalf("RefreshRepository: %v", err)
	}
	st, ok, err := c.Status(ctx, "local")
	if err != nil || !ok || st.Packages != 1 || st.Revision != "1" {
		t.Fatalf("cache status = %+v, %v, %v", st, ok, err)
	}

	if err := m.DeleteRepository(ctx, id); err != nil {
		t.Fatalf("DeleteRepository: %v", err)
	}
	if _, ok, _ := c.Status(ctx, "local"); ok {
		t.Fatal("cache entry should be dropped with the repository")
	}
}

func TestRefreshFailureSetsLastError(t *testing.T) {
	ctx := context.Background()
	m := newLocal(t, storage.NewFSBackend(t.TempDir()), Options{})
	id, _ := m.AddRepository(ctx, record.Repository{Alias: "broken", URL: "dir://" + t.TempDir(), Priority: 99})
	if err := m.RefreshRepository(ctx, id); err == nil {
		t.Fatal("expected refresh of empty directory to fail")
	}
	if !strings.Contains(m.LastError(), "broken") {
		t.Fatalf("LastError = %q", m.LastError())
	}
}

func TestRepositoryLicense(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewFSBackend(t.TempDir())
	repofixture.WriteFile(t, medium, LicensePath, []byte("  EULA text\n"))
	m := newLocal(t, storage.NewFSBackend(t.TempDir()), Options{})
	withLicense, _ := m.AddRepository(ctx, record.Repository{Alias: "a", URL: "dir://" + medium.Root(), Priority: 99})
	without, _ := m.AddRepository(ctx, record.Repository{Alias: "b", URL: "dir://" + t.TempDir(), Priority: 99})

	if text, err := m.RepositoryLicense(ctx, withLicense); err != nil || text != "EULA text" {
		t.Fatalf("RepositoryLicense = %q, %v", text, err)
	}
	if text, err := m.RepositoryLicense(ctx, without); err != nil || text != "" {
		t.Fatalf("RepositoryLicense without file = %q, %v", text, err)
	}
}
