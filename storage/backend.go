package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// Backend is a blob store that can hand out time-limited download URLs.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL returns ErrObjectNotFound when the object no longer exists.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
