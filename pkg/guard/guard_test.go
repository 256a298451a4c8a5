package guard

import (
	"errors"
	"testing"

	"github.com/e2llm/repoconf/pkg/record"
)

func lookupOf(svcs ...record.Service) Lookup {
	return LookupFunc(func(alias string) (record.Service, bool) {
		for _, s := range svcs {
			if s.Alias == alias {
				return s, true
			}
		}
		return record.Service{}, false
	})
}

func TestAllow(t *testing.T) {
	g := New(lookupOf(
		record.Service{Alias: "scc", Type: record.ServicePlugin},
		record.Service{Alias: "ris", Type: record.ServiceRIS, URL: "http://x"},
	))
	tests := []struct {
		alias string
		kind  Kind
		want  bool
	}{
		{"scc", KindService, false},
		{"scc", KindRepository, false},
		{"ris", KindService, true},
		{"ris", KindRepository, true},
		{"", KindRepository, true},
		{"missing", KindService, true},
	}
	for _, tt := range tests {
		if got := g.Allow(tt.alias, tt.kind); got != tt.want {
			t.Errorf("Allow(%q, %v) = %v, want %v", tt.alias, tt.kind, got, tt.want)
		}
	}
}

func TestAllowIgnoresKind(t *testing.T) {
	g := New(lookupOf(
		record.Service{Alias: "scc", Type: record.ServicePlugin},
		record.Service{Alias: "ris", Type: record.ServiceRIS, URL: "http://x"},
	))
	for _, alias := range []string{"scc", "ris", "", "missing"} {
		if g.Allow(alias, KindService) != g.Allow(alias, KindRepository) {
			t.Errorf("Allow(%q) differs between kinds", alias)
		}
	}
	err := g.Check("scc", KindService, "scc")
	var v *Violation
	if !errors.As(err, &v) || Message(v.Kind) != ServiceMessage {
		t.Fatalf("Check should carry the service message, got %v", err)
	}
}

func TestCheckViolation(t *testing.T) {
	g := New(lookupOf(record.Service{Alias: "scc", Type: record.ServicePlugin}))
	err := g.Check("scc", KindRepository, "SLE-Module-Basesystem")
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("expected *Violation, got %v", err)
	}
	if v.Kind != KindRepository || v.Alias != "SLE-Module-Basesystem" {
		t.Fatalf("unexpected violation %+v", v)
	}
	if Message(v.Kind) != RepositoryMessage {
		t.Fatalf("wrong message %q", Message(v.Kind))
	}
	if err := g.Check("", KindRepository, "standalone"); err != nil {
		t.Fatalf("standalone repository should pass: %v", err)
	}
}

func TestNilGuardAllows(t *testing.T) {
	var g *Guard
	if !g.Allow("anything", KindService) {
		t.Fatal("nil guard should allow")
	}
}
