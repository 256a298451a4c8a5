// Package interact asks the operator questions.
package interact

import (
	"context"
	"fmt"

	"github.com/e2llm/repoconf/pkg/products"
)

// Kind enumerates the questions the tool may ask.
type Kind int

const (
	// PlainDirFallback: no repository metadata found; use the directory as
	// a plain collection of RPMs?
	PlainDirFallback Kind = iota
	ConfirmDelete
	// RetryWrite: the write failed; try again (yes) or discard (no)?
	RetryWrite
)

type Question struct {
	Kind    Kind
	Subject string
	// Detail is extra text shown under the question, e.g. the backend error.
	Detail string
}

func (q Question) Text() string {
	switch q.Kind {
	case PlainDirFallback:
		return fmt.Sprintf("No repository metadata found at %s. Use it as a plain RPM directory?", q.Subject)
	case ConfirmDelete:
		return fmt.Sprintf("Delete %s?", q.Subject)
	case RetryWrite:
		return "Saving the configuration failed. Retry? (no discards all changes)"
	}
	return q.Subject
}

// Prompter is the operator on the other end.
type Prompter interface {
	Confirm(ctx context.Context, q Question) bool
	// SelectProducts returns the chosen indexes; ok is false when the
	// operator cancels.
	SelectProducts(ctx context.Context, prods []products.Product) (selected []int, ok bool)
	AcceptLicense(ctx context.Context, alias, text string) bool
}
