// Package archive persists finished backtest reports to a blob store.
package archive

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no object exists under the key
var ErrNotFound = errors.New("archive: object not found")

// Store is a flat key/value blob store. Keys are slash-separated.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key starting with prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// validKey rejects keys that could escape the store root
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
