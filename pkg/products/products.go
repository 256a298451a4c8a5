// Package products finds the product subdirectories an installation medium
// offers.
package products

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/e2llm/repoconf/pkg/storage"
)

const (
	// ProductsPath lists one product per line: "<dir> <name> [version]".
	ProductsPath = "media.1/products"
	// MediaPath starts with the medium's vendor label.
	MediaPath = "media.1/media"
)

type Product struct {
	Name    string
	Version string
	// Dir is relative to the medium root; "" is the root itself.
	Dir       string
	MediaName string
}

// Label is the human-readable product name.
func (p Product) Label() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + " " + p.Version
}

// Discoverer reads the product list of a medium.
type Discoverer struct{}

// Discover returns the products on medium. A medium without a products file
// has none. Products whose name matches hint are listed first.
func (Discoverer) Discover(ctx context.Context, medium storage.Backend, hint string) ([]Product, error) {
	data, err := medium.ReadFile(ctx, ProductsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ProductsPath, err)
	}
	prods, err := Parse(data)
	if err != nil {
		return nil, err
	}

	label, err := mediaName(ctx, medium)
	if err != nil {
		return nil, err
	}
	for i := range prods {
		prods[i].MediaName = label
	}
	OrderByHint(prods, hint)
	return prods, nil
}

func mediaName(ctx context.Context, medium storage.Backend) (string, error) {
	data, err := medium.ReadFile(ctx, MediaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", MediaPath, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}

// Parse reads a products file. Blank lines and # comments are skipped.
func Parse(data []byte) ([]Product, error) {
	var out []Product
	sc := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s:%d: want \"<dir> <name> [version]\", got %q", ProductsPath, n, line)
		}
		p := Product{
			Dir:  strings.Trim(fields[0], "/"),
			Name: fields[1],
		}
		if len(fields) > 2 {
			p.Version = strings.Join(fields[2:], " ")
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", ProductsPath, err)
	}
	return out, nil
}

// OrderByHint moves products whose name contains hint (case-insensitive)
// to the front, keeping the original order otherwise.
func OrderByHint(prods []Product, hint string) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return
	}
	sort.SliceStable(prods, func(i, j int) bool {
		mi := strings.Contains(strings.ToLower(prods[i].Name), hint)
		mj := strings.Contains(strings.ToLower(prods[j].Name), hint)
		return mi && !mj
	})
}
