package editscript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/e2llm/repoconf/pkg/guard"
	"github.com/e2llm/repoconf/pkg/record"
	"github.com/e2llm/repoconf/pkg/staged"
	"github.com/e2llm/repoconf/pkg/workflow"
)

func newSession() *staged.Session {
	return staged.NewSession(
		[]record.Repository{
			{ID: 1, Alias: "oss", URL: "https://x/oss", Priority: 99},
			{ID: 2, Alias: "old", URL: "https://x/old", Priority: 99, Enabled: true},
			{ID: 3, Alias: "scc:base", URL: "https://x/base", Priority: 99, ServiceAlias: "scc"},
		},
		[]record.Service{
			{Alias: "scc", Type: record.ServicePlugin},
			{Alias: "smt", URL: "https://smt", Type: record.ServiceRIS, Autorefresh: true},
		},
	)
}

type fakeAdder struct {
	requests []workflow.Request
	outcome  workflow.Outcome
}

func (a *fakeAdder) Run(_ context.Context, _ *staged.Session, req workflow.Request) workflow.Result {
	a.requests = append(a.requests, req)
	return workflow.Result{Outcome: a.outcome}
}

func TestParse(t *testing.T) {
	sc, err := ParseBytes([]byte(`
operations:
  - add: {url: "https://download.example.org/oss", name: Main}
  - repository: oss
    set: {enabled: true, priority: 90}
  - service: smt
    delete: true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sc.Operations) != 3 || sc.Operations[0].Add.Name != "Main" || !sc.Operations[2].Delete {
		t.Fatalf("unexpected script %+v", sc)
	}

	bad := map[string]string{
		"unknown key":    "operations:\n  - repository: oss\n    enable: true\n",
		"two targets":    "operations:\n  - repository: oss\n    service: smt\n    delete: true\n",
		"no action":      "operations:\n  - repository: oss\n",
		"set and delete": "operations:\n  - repository: oss\n    delete: true\n    set: {enabled: true}\n",
	}
	for name, doc := range bad {
		if _, err := ParseBytes([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	if sc, err := ParseBytes(nil); err != nil || len(sc.Operations) != 0 {
		t.Fatalf("empty script: %+v, %v", sc, err)
	}
}

func TestApply(t *testing.T) {
	s := newSession()
	sc, err := ParseBytes([]byte(`
operations:
  - repository: oss
    set: {enabled: true, priority: 90, refresh: true}
  - repository: old
    delete: true
  - service: smt
    set: {autorefresh: false}
  - add: {url: "https://x/new", product: SLES}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	adder := &fakeAdder{outcome: workflow.OK}
	res, err := Apply(context.Background(), s, sc, adder)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Applied != 4 || res.Failed != 0 || len(res.Added) != 1 {
		t.Fatalf("result %+v", res)
	}

	oss, _ := s.Repos.Get(1)
	if !oss.Enabled || oss.Priority != 90 || !oss.DoRefresh {
		t.Fatalf("oss = %+v", oss)
	}
	if _, ok := s.Repos.Get(2); ok || len(s.PendingDeletes()) != 1 {
		t.Fatal("old should be queued for deletion")
	}
	smt, _ := s.Services.Get("smt")
	if smt.Autorefresh {
		t.Fatal("smt autorefresh should be off")
	}
	if adder.requests[0].URL != "https://x/new" || adder.requests[0].ProductHint != "SLES" {
		t.Fatalf("workflow request %+v", adder.requests[0])
	}
}

func TestApplyFailuresLeaveStateUnchanged(t *testing.T) {
	s := newSession()
	sc, err := ParseBytes([]byte(`
operations:
  - repository: oss
    set: {enabled: true, priority: 500}
  - repository: scc:base
    set: {enabled: true}
  - repository: missing
    delete: true
  - add: {url: "https://x/new"}
  - repository: old
    set: {keep_packages: true}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res, err := Apply(context.Background(), s, sc, &fakeAdder{outcome: workflow.Again})
	if res.Applied != 1 || res.Failed != 4 {
		t.Fatalf("result %+v", res)
	}
	if !errors.Is(err, record.ErrPriorityRange) || !errors.Is(err, staged.ErrUnknownRepository) {
		t.Fatalf("joined error %v", err)
	}
	var v *guard.Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected guard violation in %v", err)
	}
	if !strings.Contains(err.Error(), "again") {
		t.Fatalf("add failure should name the outcome: %v", err)
	}

	oss, _ := s.Repos.Get(1)
	if oss.Enabled || oss.Priority != 99 {
		t.Fatalf("failed operation must be undone, oss = %+v", oss)
	}
	base, _ := s.Repos.Get(3)
	if base.Enabled {
		t.Fatal("plugin repository changed")
	}
	old, _ := s.Repos.Get(2)
	if !old.KeepPackages {
		t.Fatal("later operations should still apply")
	}
}

func TestApplyWithoutAdder(t *testing.T) {
	sc := Script{Operations: []Operation{{Add: &Source{URL: "https://x"}}}}
	if _, err := Apply(context.Background(), newSession(), sc, nil); err == nil {
		t.Fatal("expected error without adder")
	}
}
