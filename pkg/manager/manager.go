package manager

import (
	"context"

	"github.com/e2llm/repoconf/pkg/record"
)

// Manager is the package-manager backend holding the live repository and
// service configuration. Every call blocks until the backend answers.
type Manager interface {
	ListRepositories(ctx context.Context) ([]record.Repository, error)
	ListServices(ctx context.Context) ([]record.Service, error)

	// ProbeService reports whether url addresses an index service.
	ProbeService(ctx context.Context, url string) (bool, error)
	// ProbeRepository returns the repository type found at url/dir, or ""
	// when nothing recognizable is there.
	ProbeRepository(ctx context.Context, url, dir string) (string, error)

	AddRepository(ctx context.Context, repo record.Repository) (int64, error)
	ReplaceRepositories(ctx context.Context, repos []record.Repository) error
	DeleteRepository(ctx context.Context, id int64) error
	RefreshRepository(ctx context.Context, id int64) error
	SetRepositoryEnabled(ctx context.Context, id int64, on bool) error
	SetRepositoryPriority(ctx context.Context, id int64, priority int) error
	RepositoryLicense(ctx context.Context, id int64) (string, error)

	AddService(ctx context.Context, svc record.Service) error
	UpdateService(ctx context.Context, svc record.Service) error
	// DeleteService removes the service together with its repositories.
	DeleteService(ctx context.Context, alias string) error
	GetService(ctx context.Context, alias string) (record.Service, error)

	SaveAll(ctx context.Context) error
	LastError() string
}
