// internal/storage/blobstore.go
package storage

import "context"

// BlobStore persists raw asset payloads keyed by their hex content hash.
// Keys are stable: writing the same hash twice is a no-op for callers.
type BlobStore interface {
	// Write stores the payload under the hash and returns the storage path.
	Write(ctx context.Context, hash string, payload []byte) (string, error)
	// Read returns the payload stored under the hash.
	Read(ctx context.Context, hash string) ([]byte, error)
	// Delete removes the payload. Deleting an absent hash is not an error.
	Delete(ctx context.Context, hash string) error
	// Exists reports whether a payload is stored under the hash.
	Exists(ctx context.Context, hash string) (bool, error)
}
