// Package attachment stores documents attached to requirements.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("attachment: not found")

// Store is a flat key/object store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Key builds the object key for a file attached to owner. The random
// segment keeps re-uploads of the same file name apart.
func Key(owner, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return fmt.Sprintf("requirements/%s/%s-%s", owner, uuid.NewString()[:8], name)
}
