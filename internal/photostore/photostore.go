package photostore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get and Delete when no blob exists under the key.
var ErrNotFound = errors.New("photo not found")

// PhotoStore is a path-addressed blob store. Save may store the blob under a
// key other than name when name is already taken; callers must keep the
// returned key.
type PhotoStore interface {
	Save(ctx context.Context, name, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
