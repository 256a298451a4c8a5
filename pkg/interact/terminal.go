package interact

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/e2llm/repoconf/pkg/products"
)

// Terminal prompts on a line-oriented stream. End of input answers no and
// cancels selections.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(in), out: out}
}

func (t *Terminal) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}

// Line reads one line of operator input.
func (t *Terminal) Line(ctx context.Context, prompt string) (string, bool) {
	fmt.Fprint(t.out, prompt)
	return t.readLine(ctx)
}

func (t *Terminal) Confirm(ctx context.Context, q Question) bool {
	fmt.Fprintln(t.out, q.Text())
	if q.Detail != "" {
		fmt.Fprintln(t.out, "  "+q.Detail)
	}
	for {
		fmt.Fprint(t.out, "[y/n] ")
		line, ok := t.readLine(ctx)
		if !ok {
			return false
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		}
	}
}

// SelectProducts accepts space- or comma-separated numbers, "all", an empty
// line for none, or "q" to cancel.
func (t *Terminal) SelectProducts(ctx context.Context, prods []products.Product) ([]int, bool) {
	fmt.Fprintln(t.out, "Products on this medium:")
	for i, p := range prods {
		fmt.Fprintf(t.out, "  %d) %s [%s]\n", i+1, p.Label(), "/"+p.Dir)
	}
	for {
		fmt.Fprint(t.out, "Select products (numbers, all, q to cancel): ")
		line, ok := t.readLine(ctx)
		if !ok {
			return nil, false
		}
		sel, cancel, err := ParseSelection(line, len(prods))
		if cancel {
			return nil, false
		}
		if err != nil {
			fmt.Fprintln(t.out, err)
			continue
		}
		return sel, true
	}
}

func (t *Terminal) AcceptLicense(ctx context.Context, alias, text string) bool {
	fmt.Fprintf(t.out, "License of %s:\n\n%s\n\n", alias, text)
	fmt.Fprint(t.out, "Accept? [y/n] ")
	line, ok := t.readLine(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}

// ParseSelection turns operator input into zero-based indexes below n.
func ParseSelection(line string, n int) (sel []int, cancel bool, err error) {
	line = strings.TrimSpace(strings.ToLower(line))
	switch line {
	case "q", "quit", "cancel":
		return nil, true, nil
	case "":
		return nil, false, nil
	case "all", "a":
		for i := 0; i < n; i++ {
			sel = append(sel, i)
		}
		return sel, false, nil
	}
	seen := make(map[int]bool)
	for _, f := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' }) {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n {
			return nil, false, fmt.Errorf("not a product number: %q", f)
		}
		if !seen[v-1] {
			seen[v-1] = true
			sel = append(sel, v-1)
		}
	}
	return sel, false, nil
}
