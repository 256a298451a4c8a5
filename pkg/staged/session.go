package staged

import (
	"errors"
	"slices"

	"github.com/e2llm/repoconf/pkg/guard"
	"github.com/e2llm/repoconf/pkg/record"
)

var (
	ErrUnknownRepository = errors.New("unknown repository")
	ErrUnknownService    = errors.New("unknown service")
	ErrDuplicateAlias    = errors.New("alias already in use")
	ErrMissingID         = errors.New("repository has no backend id")
)

// Session is the staged state of one editing session: baseline and working
// copies of repositories and services, plus the repository ids removed so far.
type Session struct {
	Repos    *RepositorySet
	Services *ServiceSet

	guard *guard.Guard
	// deleted holds ids the operator deleted; the backend still has them.
	deleted map[int64]struct{}
	// dropped holds ids that left the working set with their owning service.
	dropped map[int64]struct{}
	// forgotten holds ids already removed from the backend outside Write.
	forgotten map[int64]struct{}
}

// NewSession snapshots the backend state as baseline and working copy.
func NewSession(repos []record.Repository, services []record.Service) *Session {
	s := &Session{
		deleted:   make(map[int64]struct{}),
		dropped:   make(map[int64]struct{}),
		forgotten: make(map[int64]struct{}),
	}
	s.Services = &ServiceSet{
		set:     NewSet(func(v record.Service) string { return v.Alias }, services),
		session: s,
	}
	s.Repos = &RepositorySet{
		set:     NewSet(func(r record.Repository) int64 { return r.ID }, repos),
		session: s,
	}
	s.guard = guard.New(guard.LookupFunc(s.lookupService))
	return s
}

// Guard returns the plugin guard bound to this session's services.
func (s *Session) Guard() *guard.Guard { return s.guard }

func (s *Session) lookupService(alias string) (record.Service, bool) {
	if svc, ok := s.Services.set.Get(alias); ok {
		return svc, true
	}
	return s.Services.set.BaselineGet(alias)
}

// PendingDeletes returns the repository ids queued for backend deletion,
// in ascending order.
func (s *Session) PendingDeletes() []int64 {
	return sortedKeys(s.deleted)
}

// Removed reports whether id left the working set during this session for
// any reason.
func (s *Session) Removed(id int64) bool {
	_, d := s.deleted[id]
	_, c := s.dropped[id]
	_, f := s.forgotten[id]
	return d || c || f
}

// Commit re-baselines after a successful write. One-shot refresh requests
// are cleared.
func (s *Session) Commit() {
	working := s.Repos.set.working
	for i := range working {
		working[i].DoRefresh = false
	}
	s.Repos.set.rebase()
	s.Services.set.rebase()
	clear(s.deleted)
	clear(s.dropped)
	clear(s.forgotten)
}

// Discard throws away all working edits.
func (s *Session) Discard() {
	s.Repos.set.reset()
	s.Services.set.reset()
	clear(s.deleted)
	clear(s.dropped)
	clear(s.forgotten)
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
