package staged

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/e2llm/repoconf/pkg/guard"
	"github.com/e2llm/repoconf/pkg/record"
)

// ServiceSet is the staged service collection, keyed by alias.
type ServiceSet struct {
	set     *Set[string, record.Service]
	session *Session
}

func (s *ServiceSet) Baseline() []record.Service { return s.set.Baseline() }
func (s *ServiceSet) Working() []record.Service  { return s.set.Working() }
func (s *ServiceSet) Aliases() []string          { return s.set.WorkingKeys() }

func (s *ServiceSet) Get(alias string) (record.Service, bool) { return s.set.Get(alias) }

// Add stages a new service. It reaches the backend on the next write.
func (s *ServiceSet) Add(svc record.Service) error {
	if err := svc.Validate(); err != nil {
		return err
	}
	if s.set.Has(svc.Alias) {
		return fmt.Errorf("add service %s: %w", svc.Alias, ErrDuplicateAlias)
	}
	s.set.insert(svc)
	return nil
}

// Delete removes a service and, with it, every repository it owns from the
// working copy.
func (s *ServiceSet) Delete(alias string) error {
	if !s.set.Has(alias) {
		return fmt.Errorf("delete service %s: %w", alias, ErrUnknownService)
	}
	if err := s.session.guard.Check(alias, guard.KindService, alias); err != nil {
		return err
	}
	s.set.remove(alias)
	s.session.Repos.dropOwnedBy(alias)
	return nil
}

func (s *ServiceSet) SetEnabled(alias string, on bool) error {
	return s.Edit(alias, func(svc *record.Service) error {
		svc.Enabled = on
		return nil
	})
}

func (s *ServiceSet) SetAutorefresh(alias string, on bool) error {
	return s.Edit(alias, func(svc *record.Service) error {
		svc.Autorefresh = on
		return nil
	})
}

// Edit applies fn to a copy of the working service. Alias and type are fixed.
func (s *ServiceSet) Edit(alias string, fn func(*record.Service) error) error {
	if !s.set.Has(alias) {
		return fmt.Errorf("edit service %s: %w", alias, ErrUnknownService)
	}
	if err := s.session.guard.Check(alias, guard.KindService, alias); err != nil {
		return err
	}
	_, err := s.set.update(alias, func(svc *record.Service) error {
		typ := svc.Type
		if err := fn(svc); err != nil {
			return err
		}
		if svc.Alias != alias || svc.Type != typ {
			return fmt.Errorf("edit service %s: alias and type are immutable", alias)
		}
		return svc.Validate()
	})
	return err
}

// SetField mirrors RepositorySet.SetField for the editable service fields.
func (s *ServiceSet) SetField(alias string, field Field, value string) error {
	switch field {
	case FieldEnabled, FieldAutorefresh:
		on, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if field == FieldEnabled {
			return s.SetEnabled(alias, on)
		}
		return s.SetAutorefresh(alias, on)
	case FieldName:
		return s.Edit(alias, func(svc *record.Service) error {
			svc.Name = value
			return nil
		})
	case FieldURL:
		return s.Edit(alias, func(svc *record.Service) error {
			svc.URL = strings.TrimSpace(value)
			return nil
		})
	default:
		return fmt.Errorf("unknown service field %q", field)
	}
}
