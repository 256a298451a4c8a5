// Package editscript applies batches of configuration edits written in YAML.
//
//	operations:
//	  - add: {url: "https://download.example.org/oss", name: "Main"}
//	  - repository: oss
//	    set: {enabled: true, priority: 90}
//	  - repository: old-updates
//	    delete: true
//	  - service: smt
//	    set: {autorefresh: false}
package editscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/staged"
	"github.com/e2llm/repoconf/pkg/workflow"
)

type Script struct {
	Operations []Operation `yaml:"operations"`
}

// Operation targets exactly one repository or service by alias, or adds a
// new source.
type Operation struct {
	Repository string         `yaml:"repository,omitempty"`
	Service    string         `yaml:"service,omitempty"`
	Set        map[string]any `yaml:"set,omitempty"`
	Delete     bool           `yaml:"delete,omitempty"`
	Add        *Source        `yaml:"add,omitempty"`
}

// Source is a URL handed to the source workflow.
type Source struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name,omitempty"`
	Product string `yaml:"product,omitempty"`
}

// Adder runs the source workflow for add operations.
type Adder interface {
	Run(ctx context.Context, s *staged.Session, req workflow.Request) workflow.Result
}

// Parse decodes a script. Unknown keys are rejected.
func Parse(r io.Reader) (Script, error) {
	var sc Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, nil
		}
		return Script{}, fmt.Errorf("parse edit script: %w", err)
	}
	for i, op := range sc.Operations {
		if err := op.validate(); err != nil {
			return Script{}, fmt.Errorf("operation %d: %w", i+1, err)
		}
	}
	return sc, nil
}

func ParseBytes(data []byte) (Script, error) {
	return Parse(bytes.NewReader(data))
}

func (op Operation) validate() error {
	targets := 0
	for _, set := range []bool{op.Repository != "", op.Service != "", op.Add != nil} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return errors.New("exactly one of repository, service or add is required")
	}
	if op.Add != nil {
		if op.Delete || len(op.Set) > 0 {
			return errors.New("add takes no set or delete")
		}
		return nil
	}
	if op.Delete == (len(op.Set) > 0) {
		return errors.New("exactly one of set or delete is required")
	}
	return nil
}

// Result summarizes an applied script.
type Result struct {
	Applied int
	Failed  int
	// Added holds the outcome of every add operation, in order.
	Added []workflow.Result
}

// Apply runs every operation against s. A failing operation leaves s as it
// was before that operation and does not stop the rest; the failures are
// joined into the returned error.
func Apply(ctx context.Context, s *staged.Session, sc Script, adder Adder) (Result, error) {
	var res Result
	var errs []error
	for i, op := range sc.Operations {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := apply(ctx, s, op, adder, &res); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("operation %d: %w", i+1, err))
			continue
		}
		res.Applied++
	}
	return res, errors.Join(errs...)
}

func apply(ctx context.Context, s *staged.Session, op Operation, adder Adder, res *Result) error {
	switch {
	case op.Add != nil:
		if adder == nil {
			return errors.New("adding sources is not available")
		}
		r := adder.Run(ctx, s, workflow.Request{URL: op.Add.URL, Name: op.Add.Name, ProductHint: op.Add.Product})
		res.Added = append(res.Added, r)
		if r.Outcome != workflow.OK && r.Outcome != workflow.Next {
			if r.Err != nil {
				return fmt.Errorf("add %s: %s: %w", op.Add.URL, r.Outcome, r.Err)
			}
			return fmt.Errorf("add %s: %s", op.Add.URL, r.Outcome)
		}
		return nil

	case op.Repository != "":
		repo, ok := s.Repos.ByAlias(op.Repository)
		if !ok {
			return fmt.Errorf("repository %s: %w", op.Repository, staged.ErrUnknownRepository)
		}
		if op.Delete {
			return s.Repos.Delete(repo.ID)
		}
		return setAll(op.Set, func(f staged.Field, v string) error { return s.Repos.SetField(repo.ID, f, v) }, func() {
			_ = s.Repos.Edit(repo.ID, func(r *record.Repository) error { *r = repo; return nil })
		})

	default:
		svc, ok := s.Services.Get(op.Service)
		if !ok {
			return fmt.Errorf("service %s: %w", op.Service, staged.ErrUnknownService)
		}
		if op.Delete {
			return s.Services.Delete(svc.Alias)
		}
		return setAll(op.Set, func(f staged.Field, v string) error { return s.Services.SetField(svc.Alias, f, v) }, func() {
			_ = s.Services.Edit(svc.Alias, func(r *record.Service) error { *r = svc; return nil })
		})
	}
}

// setAll applies fields in name order. On the first failure undo restores
// the record as it was before the operation.
func setAll(fields map[string]any, set func(staged.Field, string) error, undo func()) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if err := set(staged.Field(name), fmt.Sprint(fields[name])); err != nil {
			if i > 0 {
				undo()
			}
			return err
		}
	}
	return nil
}
