package alias

import (
	"strconv"
	"strings"
	"unicode"
)

// Fallback is returned when nothing usable remains of the preferred name.
const Fallback = "repo"

const unfriendly = "/\\'\"`$*?!&;|<>()[]{}#~"

// Propose derives an alias from preferred that is not present in existing.
// Shell-unfriendly characters are dropped and spaces become underscores.
// On collision "_1", "_2", ... is appended until the alias is unique.
func Propose(preferred string, existing []string) string {
	base := Sanitize(preferred)
	taken := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		taken[a] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// Sanitize applies the character rules of Propose without the collision check.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case unicode.IsControl(r), unicode.IsSpace(r):
		case strings.ContainsRune(unfriendly, r):
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}
