package storage

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by backends that cannot be written to.
var ErrReadOnly = errors.New("storage is read-only")

// ErrUnsupported is returned for listing on backends that cannot enumerate.
var ErrUnsupported = errors.New("operation not supported by storage")

// Backend abstracts a tree of files addressed by slash-separated paths
// relative to its root (e.g. "repodata/repomd.xml"). Missing files are
// reported with errors matching fs.ErrNotExist.
type Backend interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	DeleteFile(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// List returns the files directly below dir.
	List(ctx context.Context, dir string) ([]string, error)
	ListRPMs(ctx context.Context) ([]string, error)
	Root() string
}
