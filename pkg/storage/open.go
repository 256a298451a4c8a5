package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/e2llm/repoconf/pkg/record"
)

// Options tunes the backends Open may construct.
type Options struct {
	S3Endpoint string
	HTTPClient *http.Client
}

// Open returns the backend serving rawURL: dir:// and file:// map to the
// local filesystem, s3:// to S3 and http(s):// to a read-only HTTP backend.
func Open(ctx context.Context, rawURL string, opts Options) (Backend, error) {
	u, err := record.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "dir", "file":
		p := u.Path
		if u.Host != "" {
			// dir://relative/path
			p = u.Host + p
		}
		if p == "" {
			return nil, fmt.Errorf("%w: empty path in %q", record.ErrInvalidURL, rawURL)
		}
		return NewFSBackend(p), nil
	case "s3":
		return NewS3Backend(ctx, rawURL, opts.S3Endpoint)
	case "http", "https":
		return NewHTTPBackend(rawURL, opts.HTTPClient), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", record.ErrInvalidURL, u.Scheme)
	}
}
