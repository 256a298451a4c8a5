package products

import (
	"context"
	"testing"

	"github.com/e2llm/repoconf/internal/testutil/repofixture"
	"github.com/e2llm/repoconf/pkg/storage"
)

func TestParse(t *testing.T) {
	data := []byte(`# products on this medium
/ SLES 15-SP5

/Module-Basesystem sle-module-basesystem 15.5-0
`)
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %+v", got)
	}
	if got[0].Dir != "" || got[0].Name != "SLES" || got[0].Label() != "SLES 15-SP5" {
		t.Fatalf("unexpected first product %+v", got[0])
	}
	if got[1].Dir != "Module-Basesystem" || got[1].Version != "15.5-0" {
		t.Fatalf("unexpected second product %+v", got[1])
	}

	if _, err := Parse([]byte("lonely\n")); err == nil {
		t.Fatal("expected error for line without a name")
	}
}

func TestOrderByHint(t *testing.T) {
	prods := []Product{{Name: "sle-module-web"}, {Name: "SLES"}, {Name: "sle-module-basesystem"}, {Name: "sles-sap"}}
	OrderByHint(prods, "sles")
	want := []string{"SLES", "sles-sap", "sle-module-web", "sle-module-basesystem"}
	for i, name := range want {
		if prods[i].Name != name {
			t.Fatalf("position %d: got %s, want %s (%+v)", i, prods[i].Name, name, prods)
		}
	}
}

func TestDiscover(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewFSBackend(t.TempDir())

	got, err := Discoverer{}.Discover(ctx, medium, "")
	if err != nil || len(got) != 0 {
		t.Fatalf("medium without products: %+v, %v", got, err)
	}

	repofixture.WriteFile(t, medium, ProductsPath, []byte("/a Alpha 1\n/b Beta 2\n"))
	repofixture.WriteFile(t, medium, MediaPath, []byte("\nExample Vendor\n20260101\n"))
	got, err = Discoverer{}.Discover(ctx, medium, "beta")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Beta" || got[0].MediaName != "Example Vendor" {
		t.Fatalf("unexpected products %+v", got)
	}
}
