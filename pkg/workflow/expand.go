package workflow

import (
	"fmt"
	"os"
	"strings"

	"github.com/e2llm/repoconf/pkg/record"
)

// Vars holds the values substituted into source URLs.
type Vars map[string]string

// NewVars returns the standard variables. $arch is an alias of $basearch.
func NewVars(releasever, basearch string) Vars {
	return Vars{
		"releasever": releasever,
		"basearch":   basearch,
		"arch":       basearch,
	}
}

// ExpandURL substitutes $name and ${name} and validates the result. An
// unknown or empty variable is an error.
func ExpandURL(raw string, vars Vars) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", record.ErrInvalidURL)
	}
	var missing []string
	expanded := os.Expand(raw, func(name string) string {
		v, ok := vars[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return ""
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: cannot expand $%s in %q", record.ErrInvalidURL, strings.Join(missing, ", $"), raw)
	}
	if _, err := record.ParseURL(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}
