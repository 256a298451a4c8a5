// Package media gives scoped access to the medium behind a source URL.
package media

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/e2llm/repoconf/pkg/storage"
)

// Medium is an attached medium. Release must be called once the caller is
// done; further calls are no-ops.
type Medium struct {
	storage.Backend
	URL string

	once    sync.Once
	release func()
}

// NewMedium wraps b. release may be nil.
func NewMedium(url string, b storage.Backend, release func()) *Medium {
	return &Medium{Backend: b, URL: url, release: release}
}

func (m *Medium) Release() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		if m.release != nil {
			m.release()
		}
	})
}

// Attacher makes the medium at url available.
type Attacher interface {
	Attach(ctx context.Context, url string) (*Medium, error)
}

// StorageAttacher attaches media through storage.Open. Releasing an HTTP
// medium drops its idle connections.
type StorageAttacher struct {
	Options storage.Options
	Logger  zerolog.Logger
}

func (a *StorageAttacher) Attach(ctx context.Context, url string) (*Medium, error) {
	opts := a.Options
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
		opts.HTTPClient = client
	}
	b, err := storage.Open(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", url, err)
	}
	a.Logger.Debug().Str("url", url).Str("root", b.Root()).Msg("medium attached")
	return NewMedium(url, b, func() {
		if _, ok := b.(*storage.HTTPBackend); ok {
			client.CloseIdleConnections()
		}
		a.Logger.Debug().Str("url", url).Msg("medium released")
	}), nil
}
