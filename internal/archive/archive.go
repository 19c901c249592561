// Package archive persists fetched page snapshots to a blob store. The
// Store abstraction keeps the pipeline independent of a specific backend
// (Google Cloud Storage, the local filesystem, or memory).
package archive

import "context"

// Store is the common interface for a snapshot archive backend.
type Store interface {
	// Save uploads data under the given object key.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOp is a Store that discards every object. It is used when archiving is
// disabled or in dry-run mode where content is fetched but not kept.
type NoOp struct{}

// Save does nothing and always returns nil.
func (NoOp) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
