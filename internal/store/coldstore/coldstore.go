// Package coldstore defines the durable key-value boundary behind the
// cold tier of the transaction store, plus the backends implementing it.
package coldstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for the id.
var ErrNotFound = errors.New("record not found in cold store")

// Backend is the durable key-value storage the cold tier persists
// through. Keys are transaction ids, values are encoded
// (Transaction, DisputeState) pairs. Implementations must be safe for
// concurrent use.
type Backend interface {
	Put(ctx context.Context, id uint32, value []byte) error
	Get(ctx context.Context, id uint32) ([]byte, error)
	Delete(ctx context.Context, id uint32) error
	Close() error
}
