package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
)

// HTTPBackend reads files from a remote repository over HTTP(S). It cannot
// enumerate directories, so List and ListRPMs return ErrUnsupported.
type HTTPBackend struct {
	base   string
	client *http.Client
}

func NewHTTPBackend(base string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBackend{base: strings.TrimSuffix(base, "/"), client: client}
}

func (b *HTTPBackend) Root() string { return b.base }

func (b *HTTPBackend) url(p string) string {
	return b.base + "/" + strings.TrimPrefix(p, "/")
}

func (b *HTTPBackend) do(ctx context.Context, method, p string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.url(p), nil)
	if err != nil {
		return nil, err
	}
	return b.client.Do(req)
}

func (b *HTTPBackend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	resp, err := b.do(ctx, http.MethodGet, p)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", b.url(p), fs.ErrNotExist)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("get %s: %s", b.url(p), resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (b *HTTPBackend) Exists(ctx context.Context, p string) (bool, error) {
	resp, err := b.do(ctx, http.MethodHead, p)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("head %s: %s", b.url(p), resp.Status)
	}
	return true, nil
}

func (b *HTTPBackend) WriteFile(context.Context, string, []byte) error { return ErrReadOnly }
func (b *HTTPBackend) DeleteFile(context.Context, string) error        { return ErrReadOnly }

func (b *HTTPBackend) List(context.Context, string) ([]string, error) { return nil, ErrUnsupported }
func (b *HTTPBackend) ListRPMs(context.Context) ([]string, error)     { return nil, ErrUnsupported }
