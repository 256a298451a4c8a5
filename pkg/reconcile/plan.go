package reconcile

import (
	"fmt"

	"github.com/e2llm/repoconf/pkg/record"
)

// Op is one kind of backend mutation.
type Op int

const (
	OpDeleteService Op = iota
	OpAddService
	OpUpdateService
	OpSetEnabled
	OpSetPriority
	OpReplaceRepositories
	OpDeleteRepository
	OpRefreshRepository
	OpSaveKeys
	OpSaveAll
)

var opNames = [...]string{
	OpDeleteService:       "delete service",
	OpAddService:          "add service",
	OpUpdateService:       "update service",
	OpSetEnabled:          "set enabled",
	OpSetPriority:         "set priority",
	OpReplaceRepositories: "replace repositories",
	OpDeleteRepository:    "delete repository",
	OpRefreshRepository:   "refresh repository",
	OpSaveKeys:            "save keys",
	OpSaveAll:             "save configuration",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Action is one planned backend call. Only the fields its Op needs are set.
type Action struct {
	Op           Op
	Service      record.Service
	Repository   record.Repository
	Repositories []record.Repository
	// Owned lists the baseline repositories that go away with a deleted
	// service.
	Owned []int64
}

func (a Action) String() string {
	switch a.Op {
	case OpDeleteService, OpAddService, OpUpdateService:
		return fmt.Sprintf("%s %s", a.Op, a.Service.Alias)
	case OpSetEnabled, OpSetPriority, OpDeleteRepository, OpRefreshRepository:
		return fmt.Sprintf("%s %s (%d)", a.Op, a.Repository.Alias, a.Repository.ID)
	case OpReplaceRepositories:
		return fmt.Sprintf("%s (%d)", a.Op, len(a.Repositories))
	default:
		return a.Op.String()
	}
}

// PlanInput is the staged state a write turns into backend calls.
type PlanInput struct {
	BaselineServices []record.Service
	WorkingServices  []record.Service
	BaselineRepos    []record.Repository
	WorkingRepos     []record.Repository
	PendingDeletes   []int64
	// Live is the set of repository ids the backend currently holds.
	Live []int64
	// LiveServices is the set of service aliases the backend currently
	// holds. A retried write finds its earlier service steps already done.
	LiveServices []string

	Embedded            bool
	RefreshNewlyEnabled bool
}

// Plan computes the ordered backend calls for one write. It does not
// consult the backend; the engine executes the result.
func Plan(in PlanInput) []Action {
	var actions []Action

	workSvc := make(map[string]struct{}, len(in.WorkingServices))
	for _, s := range in.WorkingServices {
		workSvc[s.Alias] = struct{}{}
	}
	liveSvc := make(map[string]struct{}, len(in.LiveServices))
	for _, a := range in.LiveServices {
		liveSvc[a] = struct{}{}
	}

	for _, s := range in.BaselineServices {
		if _, ok := workSvc[s.Alias]; ok {
			continue
		}
		if _, ok := liveSvc[s.Alias]; !ok {
			continue
		}
		var owned []int64
		for _, r := range in.BaselineRepos {
			if r.ServiceAlias == s.Alias {
				owned = append(owned, r.ID)
			}
		}
		actions = append(actions, Action{Op: OpDeleteService, Service: s, Owned: owned})
	}

	for _, s := range in.WorkingServices {
		op := OpUpdateService
		if _, ok := liveSvc[s.Alias]; !ok {
			op = OpAddService
		}
		actions = append(actions, Action{Op: op, Service: s})
	}

	live := make(map[int64]struct{}, len(in.Live))
	for _, id := range in.Live {
		live[id] = struct{}{}
	}
	if in.Embedded {
		for _, r := range in.WorkingRepos {
			if _, ok := live[r.ID]; !ok {
				continue
			}
			actions = append(actions,
				Action{Op: OpSetEnabled, Repository: r},
				Action{Op: OpSetPriority, Repository: r},
			)
		}
	}

	actions = append(actions, Action{Op: OpReplaceRepositories, Repositories: in.WorkingRepos})

	newlyEnabled := NewlyEnabled(in.BaselineRepos, in.WorkingRepos)

	baseRepo := make(map[int64]record.Repository, len(in.BaselineRepos))
	for _, r := range in.BaselineRepos {
		baseRepo[r.ID] = r
	}
	for _, id := range in.PendingDeletes {
		if _, ok := live[id]; !ok {
			continue
		}
		r, ok := baseRepo[id]
		if !ok {
			r = record.Repository{ID: id}
		}
		actions = append(actions, Action{Op: OpDeleteRepository, Repository: r})
	}

	for _, r := range in.WorkingRepos {
		_, fresh := newlyEnabled[r.ID]
		if r.DoRefresh || (in.RefreshNewlyEnabled && fresh) {
			actions = append(actions, Action{Op: OpRefreshRepository, Repository: r})
		}
	}

	return append(actions, Action{Op: OpSaveKeys}, Action{Op: OpSaveAll})
}

// NewlyEnabled returns the ids enabled in working that were absent or
// disabled in baseline.
func NewlyEnabled(baseline, working []record.Repository) map[int64]struct{} {
	was := make(map[int64]bool, len(baseline))
	for _, r := range baseline {
		was[r.ID] = r.Enabled
	}
	out := make(map[int64]struct{})
	for _, r := range working {
		if r.Enabled && !was[r.ID] {
			out[r.ID] = struct{}{}
		}
	}
	return out
}
