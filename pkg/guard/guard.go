package guard

import (
	"fmt"

	"github.com/e2llm/repoconf/pkg/record"
)

// Kind selects which canned message accompanies a denial.
type Kind int

const (
	KindService Kind = iota
	KindRepository
)

const (
	ServiceMessage    = "This service is managed by a plugin and cannot be changed."
	RepositoryMessage = "This repository belongs to a plugin service and cannot be changed."
)

// Message returns the text shown to the operator for a denied mutation.
func Message(kind Kind) string {
	if kind == KindRepository {
		return RepositoryMessage
	}
	return ServiceMessage
}

// Lookup resolves a service alias to its record.
type Lookup interface {
	Service(alias string) (record.Service, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(alias string) (record.Service, bool)

func (f LookupFunc) Service(alias string) (record.Service, bool) { return f(alias) }

// Violation is returned by Check when a mutation is refused.
type Violation struct {
	Kind  Kind
	Alias string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Alias, Message(v.Kind))
}

// Guard refuses mutations of plugin services and the repositories they own.
type Guard struct {
	services Lookup
}

func New(services Lookup) *Guard {
	return &Guard{services: services}
}

// Allow reports whether records tied to serviceAlias may be mutated.
// An empty alias (standalone repository) or an unknown service is allowed.
// kind does not affect the result; Check uses it to pick the message.
func (g *Guard) Allow(serviceAlias string, _ Kind) bool {
	if g == nil || g.services == nil || serviceAlias == "" {
		return true
	}
	svc, ok := g.services.Service(serviceAlias)
	if !ok {
		return true
	}
	return !svc.IsPlugin()
}

// Check is Allow returning a *Violation on denial. target names the record
// in the error text.
func (g *Guard) Check(serviceAlias string, kind Kind, target string) error {
	if g.Allow(serviceAlias, kind) {
		return nil
	}
	return &Violation{Kind: kind, Alias: target}
}

// AllowRepository is Allow for the service owning repo.
func (g *Guard) AllowRepository(repo record.Repository) bool {
	return g.Allow(repo.ServiceAlias, KindRepository)
}
