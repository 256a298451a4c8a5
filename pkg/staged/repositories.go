package staged

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/e2llm/repoconf/pkg/guard"
	"github.com/e2llm/repoconf/pkg/record"
)

// Field names a repository property editable through SetField.
type Field string

const (
	FieldEnabled      Field = "enabled"
	FieldAutorefresh  Field = "autorefresh"
	FieldPriority     Field = "priority"
	FieldKeepPackages Field = "keep_packages"
	FieldName         Field = "name"
	FieldURL          Field = "url"
	FieldDoRefresh    Field = "refresh"
)

// RepositorySet is the staged repository collection, keyed by backend id.
type RepositorySet struct {
	set     *Set[int64, record.Repository]
	session *Session
}

func (r *RepositorySet) Baseline() []record.Repository { return r.set.Baseline() }
func (r *RepositorySet) Working() []record.Repository  { return r.set.Working() }
func (r *RepositorySet) BaselineIDs() []int64          { return r.set.BaselineKeys() }

func (r *RepositorySet) Get(id int64) (record.Repository, bool) { return r.set.Get(id) }

// ByAlias finds a working repository by alias.
func (r *RepositorySet) ByAlias(a string) (record.Repository, bool) {
	for _, repo := range r.set.working {
		if repo.Alias == a {
			return repo, true
		}
	}
	return record.Repository{}, false
}

// Aliases lists the aliases of the working copy.
func (r *RepositorySet) Aliases() []string {
	out := make([]string, 0, len(r.set.working))
	for _, repo := range r.set.working {
		out = append(out, repo.Alias)
	}
	return out
}

// Add appends a repository already known to the backend.
func (r *RepositorySet) Add(repo record.Repository) error {
	if repo.ID == 0 {
		return fmt.Errorf("add %s: %w", repo.Alias, ErrMissingID)
	}
	if err := repo.Validate(); err != nil {
		return err
	}
	if r.set.Has(repo.ID) {
		return fmt.Errorf("add %s: id %d already staged", repo.Alias, repo.ID)
	}
	if _, ok := r.ByAlias(repo.Alias); ok {
		return fmt.Errorf("add %s: %w", repo.Alias, ErrDuplicateAlias)
	}
	if repo.ServiceAlias != "" {
		if !r.session.Services.set.Has(repo.ServiceAlias) {
			return fmt.Errorf("add %s: service %s: %w", repo.Alias, repo.ServiceAlias, ErrUnknownService)
		}
	}
	if err := r.session.guard.Check(repo.ServiceAlias, guard.KindRepository, repo.Alias); err != nil {
		return err
	}
	r.set.insert(repo)
	return nil
}

// Delete removes a repository from the working copy and queues its backend
// deletion for the next write.
func (r *RepositorySet) Delete(id int64) error {
	repo, ok := r.set.Get(id)
	if !ok {
		return fmt.Errorf("delete %d: %w", id, ErrUnknownRepository)
	}
	if err := r.session.guard.Check(repo.ServiceAlias, guard.KindRepository, repo.Alias); err != nil {
		return err
	}
	r.set.remove(id)
	r.session.deleted[id] = struct{}{}
	return nil
}

// Forget drops a repository the backend has already removed. Nothing is
// queued.
func (r *RepositorySet) Forget(id int64) {
	if r.set.remove(id) {
		r.session.forgotten[id] = struct{}{}
	}
}

func (r *RepositorySet) SetEnabled(id int64, on bool) error {
	return r.Edit(id, func(repo *record.Repository) error {
		repo.Enabled = on
		return nil
	})
}

func (r *RepositorySet) SetAutorefresh(id int64, on bool) error {
	return r.Edit(id, func(repo *record.Repository) error {
		repo.Autorefresh = on
		return nil
	})
}

// SetPriority rejects values outside record.MinPriority..record.MaxPriority.
func (r *RepositorySet) SetPriority(id int64, p int) error {
	return r.Edit(id, func(repo *record.Repository) error {
		if err := record.ValidatePriority(p); err != nil {
			return err
		}
		repo.Priority = p
		return nil
	})
}

func (r *RepositorySet) SetKeepPackages(id int64, on bool) error {
	return r.Edit(id, func(repo *record.Repository) error {
		repo.KeepPackages = on
		return nil
	})
}

func (r *RepositorySet) SetDoRefresh(id int64, on bool) error {
	return r.Edit(id, func(repo *record.Repository) error {
		repo.DoRefresh = on
		return nil
	})
}

// Edit applies fn to a copy of the working repository and keeps the result
// if fn succeeds and the record still validates. The id cannot change.
func (r *RepositorySet) Edit(id int64, fn func(*record.Repository) error) error {
	current, ok := r.set.Get(id)
	if !ok {
		return fmt.Errorf("edit %d: %w", id, ErrUnknownRepository)
	}
	if err := r.session.guard.Check(current.ServiceAlias, guard.KindRepository, current.Alias); err != nil {
		return err
	}
	_, err := r.set.update(id, func(repo *record.Repository) error {
		if err := fn(repo); err != nil {
			return err
		}
		if repo.ID != id {
			return fmt.Errorf("edit %s: id is immutable", current.Alias)
		}
		if repo.ServiceAlias != current.ServiceAlias {
			return fmt.Errorf("edit %s: service is immutable", current.Alias)
		}
		if repo.Alias != current.Alias {
			if other, taken := r.ByAlias(repo.Alias); taken && other.ID != id {
				return fmt.Errorf("edit %s: %w", repo.Alias, ErrDuplicateAlias)
			}
		}
		return repo.Validate()
	})
	return err
}

// SetField parses value for field and applies it through the typed setter.
func (r *RepositorySet) SetField(id int64, field Field, value string) error {
	switch field {
	case FieldEnabled, FieldAutorefresh, FieldKeepPackages, FieldDoRefresh:
		on, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		switch field {
		case FieldEnabled:
			return r.SetEnabled(id, on)
		case FieldAutorefresh:
			return r.SetAutorefresh(id, on)
		case FieldKeepPackages:
			return r.SetKeepPackages(id, on)
		default:
			return r.SetDoRefresh(id, on)
		}
	case FieldPriority:
		p, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		return r.SetPriority(id, p)
	case FieldName:
		return r.Edit(id, func(repo *record.Repository) error {
			repo.Name = value
			return nil
		})
	case FieldURL:
		return r.Edit(id, func(repo *record.Repository) error {
			repo.URL = strings.TrimSpace(value)
			return nil
		})
	default:
		return fmt.Errorf("unknown repository field %q", field)
	}
}

// ReplaceWorking installs a reconciled working copy. It bypasses the guard;
// reconciliation never changes the values of surviving records.
func (r *RepositorySet) ReplaceWorking(repos []record.Repository) {
	r.set.replaceWorking(repos)
}

// dropOwnedBy removes the repositories of a deleted service.
func (r *RepositorySet) dropOwnedBy(serviceAlias string) {
	for _, repo := range r.set.Working() {
		if repo.ServiceAlias == serviceAlias {
			r.set.remove(repo.ID)
			r.session.dropped[repo.ID] = struct{}{}
		}
	}
}
