// Package repository persists the vendor estimator's opaque state blob.
package repository

import "context"

// Store holds a single state blob. Save replaces the previous blob;
// Load returns ErrNoState when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
}
