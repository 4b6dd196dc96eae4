// Package persist stores namespaced state blobs across client restarts.
package persist

import (
	"context"
	"errors"
)

// Namespaces of the blobs the client persists. They are fixed and distinct.
const (
	NamespaceSession = "email-client-auth"
	NamespacePrefs   = "email-store"
)

// ErrNotFound is returned by Load when nothing is stored under a namespace.
var ErrNotFound = errors.New("persist: namespace not found")

// Storage is durable client-side storage of opaque blobs keyed by namespace.
type Storage interface {
	// Load returns the blob stored under namespace, or ErrNotFound.
	Load(ctx context.Context, namespace string) ([]byte, error)

	// Save replaces the blob stored under namespace.
	Save(ctx context.Context, namespace string, data []byte) error

	// Remove deletes the blob stored under namespace. Removing a missing
	// namespace is not an error.
	Remove(ctx context.Context, namespace string) error
}
