package interact

import (
	"context"

	"github.com/e2llm/repoconf/pkg/products"
)

// Scripted answers from fixed values. It backs non-interactive runs and
// tests, and records what it was asked.
type Scripted struct {
	Answers map[Kind]bool
	// Selection is returned by SelectProducts; nil with Cancel unset
	// selects nothing.
	Selection []int
	SelectAll bool
	Cancel    bool
	// Licenses maps alias to acceptance; aliases not listed get
	// AcceptLicenses.
	Licenses       map[string]bool
	AcceptLicenses bool

	Asked        []Question
	LicenseAsked []string
}

func (s *Scripted) Confirm(_ context.Context, q Question) bool {
	s.Asked = append(s.Asked, q)
	return s.Answers[q.Kind]
}

func (s *Scripted) SelectProducts(_ context.Context, prods []products.Product) ([]int, bool) {
	if s.Cancel {
		return nil, false
	}
	if s.SelectAll {
		all := make([]int, len(prods))
		for i := range all {
			all[i] = i
		}
		return all, true
	}
	return s.Selection, true
}

func (s *Scripted) AcceptLicense(_ context.Context, alias, _ string) bool {
	s.LicenseAsked = append(s.LicenseAsked, alias)
	if v, ok := s.Licenses[alias]; ok {
		return v
	}
	return s.AcceptLicenses
}
