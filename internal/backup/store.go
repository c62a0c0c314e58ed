package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrObjectNotFound is returned by Get for keys that were never stored.
var ErrObjectNotFound = errors.New("backup: object not found")

// ErrInvalidKey is returned for container or key names that could escape
// their namespace.
var ErrInvalidKey = errors.New("backup: invalid object key")

// Store is a remote backup.
type Store interface {
	// Put stores size bytes from r under container/key, replacing any
	// previous object.
	Put(ctx context.Context, container, key string, r io.Reader, size int64, contentType string) error

	// Get opens container/key. The caller closes the reader.
	Get(ctx context.Context, container, key string) (io.ReadCloser, error)
}

// ObjectPath joins container and key into the slash separated path used by
// every backend.
func ObjectPath(container, key string) (string, error) {
	if err := checkName(container); err != nil {
		return "", err
	}
	if err := checkName(key); err != nil {
		return "", err
	}
	return container + "/" + key, nil
}

func checkName(s string) error {
	if s == "" || strings.HasPrefix(s, "/") || strings.Contains(s, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	for _, part := range strings.Split(s, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return nil
}
