// Package metadata is a small key/value table for client state that is not
// part of the buffered data: remote list handles returned by CreateTable,
// the time of the last login and the outcome of the last drain.
package metadata

import (
	"context"
	"strings"
)

const (
	KeyListHandlePrefix = "list_handle:"
	KeyLastDrain        = "last_drain"
	KeyLastLogin        = "last_login"
)

// ListHandleKey returns the key under which the remote handle of list is kept.
func ListHandleKey(list string) string {
	return KeyListHandlePrefix + list
}

// listFromHandleKey is the inverse of ListHandleKey.
func listFromHandleKey(key string) (string, bool) {
	return strings.CutPrefix(key, KeyListHandlePrefix)
}

type Repository interface {
	// Get returns nil without error when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Handles returns the remote handle of every list created on the server,
	// keyed by list name.
	Handles(ctx context.Context) (map[string]string, error)
}
