package interact

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/e2llm/repoconf/pkg/products"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		cancel  bool
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "q", cancel: true},
		{in: "all", want: []int{0, 1, 2}},
		{in: "1,3", want: []int{0, 2}},
		{in: "3 1 3", want: []int{2, 0}},
		{in: "4", wantErr: true},
		{in: "x", wantErr: true},
	}
	for _, tt := range tests {
		got, cancel, err := ParseSelection(tt.in, 3)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.in, err)
		}
		if cancel != tt.cancel || !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%q: got %v cancel=%v, want %v cancel=%v", tt.in, got, cancel, tt.want, tt.cancel)
		}
	}
}

func TestTerminal(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("maybe\ny\n9\n2\nno\n"), &out)

	if !term.Confirm(ctx, Question{Kind: PlainDirFallback, Subject: "dir:///srv"}) {
		t.Fatal("expected yes after re-prompt")
	}
	sel, ok := term.SelectProducts(ctx, []products.Product{{Name: "A"}, {Name: "B"}})
	if !ok || !reflect.DeepEqual(sel, []int{1}) {
		t.Fatalf("SelectProducts = %v, %v", sel, ok)
	}
	if term.AcceptLicense(ctx, "repo", "terms") {
		t.Fatal("license should be rejected")
	}
	if term.Confirm(ctx, Question{Kind: ConfirmDelete, Subject: "x"}) {
		t.Fatal("end of input must answer no")
	}
	if !strings.Contains(out.String(), "plain RPM directory") || !strings.Contains(out.String(), "License of repo") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestScripted(t *testing.T) {
	ctx := context.Background()
	s := &Scripted{
		Answers:        map[Kind]bool{RetryWrite: true},
		Licenses:       map[string]bool{"bad": false},
		AcceptLicenses: true,
	}
	if !s.Confirm(ctx, Question{Kind: RetryWrite}) || s.Confirm(ctx, Question{Kind: ConfirmDelete}) {
		t.Fatal("unexpected confirm answers")
	}
	if s.AcceptLicense(ctx, "bad", "") || !s.AcceptLicense(ctx, "good", "") {
		t.Fatal("unexpected license answers")
	}
	if len(s.Asked) != 2 || len(s.LicenseAsked) != 2 {
		t.Fatalf("asked %v, licenses %v", s.Asked, s.LicenseAsked)
	}
}

func TestScriptedSelectAll(t *testing.T) {
	prods := []products.Product{{Name: "A", Dir: "a"}, {Name: "B", Dir: "b"}}
	s := &Scripted{SelectAll: true}
	got, ok := s.SelectProducts(context.Background(), prods)
	if !ok || !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("SelectProducts = %v, %v", got, ok)
	}
	s = &Scripted{SelectAll: true, Cancel: true}
	if _, ok := s.SelectProducts(context.Background(), prods); ok {
		t.Fatal("cancel should win over SelectAll")
	}
}
