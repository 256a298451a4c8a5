package record

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// MinPriority and MaxPriority bound Repository.Priority. Lower values win.
	MinPriority = 0
	MaxPriority = 200
	// DefaultPriority is used when a repository is created without one.
	DefaultPriority = 99
)

// Repository types understood by the backend.
const (
	TypeRPMMD    = "rpm-md"
	TypePlainDir = "plaindir"
)

var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrEmptyAlias    = errors.New("empty alias")
	ErrPriorityRange = fmt.Errorf("priority outside %d..%d", MinPriority, MaxPriority)
)

// ServiceType distinguishes ordinary index services from plugin services
// whose contents are managed outside this tool.
type ServiceType string

const (
	ServiceRIS    ServiceType = "ris"
	ServicePlugin ServiceType = "plugin"
)

// Repository is one configured package source.
type Repository struct {
	// ID is assigned by the backend; zero until the repository is committed.
	ID           int64  `toml:"id" json:"id"`
	Alias        string `toml:"alias" json:"alias"`
	Name         string `toml:"name" json:"name"`
	Enabled      bool   `toml:"enabled" json:"enabled"`
	Autorefresh  bool   `toml:"autorefresh" json:"autorefresh"`
	Priority     int    `toml:"priority" json:"priority"`
	KeepPackages bool   `toml:"keep_packages" json:"keep_packages"`
	ServiceAlias string `toml:"service,omitempty" json:"service,omitempty"`
	URL          string `toml:"url" json:"url"`
	ProductDir   string `toml:"product_dir,omitempty" json:"product_dir,omitempty"`
	Type         string `toml:"type,omitempty" json:"type,omitempty"`
	// DoRefresh asks for a metadata download at commit time. Never persisted.
	DoRefresh bool `toml:"-" json:"-"`
}

// Standalone reports whether the repository belongs to no service.
func (r Repository) Standalone() bool {
	return r.ServiceAlias == ""
}

// Validate checks the configuration record itself, not the repository content.
func (r Repository) Validate() error {
	if strings.TrimSpace(r.Alias) == "" {
		return ErrEmptyAlias
	}
	if err := ValidatePriority(r.Priority); err != nil {
		return fmt.Errorf("repository %s: %w", r.Alias, err)
	}
	if _, err := ParseURL(r.URL); err != nil {
		return fmt.Errorf("repository %s: %w", r.Alias, err)
	}
	return nil
}

// Service is a repository index service.
type Service struct {
	Alias       string      `toml:"alias" json:"alias"`
	Name        string      `toml:"name" json:"name"`
	URL         string      `toml:"url" json:"url"`
	Enabled     bool        `toml:"enabled" json:"enabled"`
	Autorefresh bool        `toml:"autorefresh" json:"autorefresh"`
	Type        ServiceType `toml:"type" json:"type"`
}

// IsPlugin reports whether the service is managed by an external plugin.
func (s Service) IsPlugin() bool {
	return s.Type == ServicePlugin
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Alias) == "" {
		return ErrEmptyAlias
	}
	switch s.Type {
	case ServiceRIS, ServicePlugin:
	default:
		return fmt.Errorf("service %s: unknown type %q", s.Alias, s.Type)
	}
	if s.IsPlugin() {
		return nil
	}
	if _, err := ParseURL(s.URL); err != nil {
		return fmt.Errorf("service %s: %w", s.Alias, err)
	}
	return nil
}

// ValidatePriority rejects values outside MinPriority..MaxPriority.
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("%w: %d", ErrPriorityRange, p)
	}
	return nil
}

// ParseURL parses a repository or service URL. A scheme is required.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// Join appends a product directory to a repository URL.
func Join(base, dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + dir
}
