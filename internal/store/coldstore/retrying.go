package coldstore

import (
	"context"

	"github.com/iho/payengine/internal/infrastructure/retry"
)

// retrying decorates a Backend with exponential backoff on transient
// errors (locked database file, dropped connection).
type retrying struct {
	backend Backend
	retrier *retry.Retrier
}

// WithRetry wraps backend so every operation goes through retrier.
func WithRetry(backend Backend, retrier *retry.Retrier) Backend {
	return &retrying{backend: backend, retrier: retrier}
}

func (r *retrying) Put(ctx context.Context, id uint32, value []byte) error {
	return r.retrier.Do(ctx, func() error {
		return r.backend.Put(ctx, id, value)
	})
}

func (r *retrying) Get(ctx context.Context, id uint32) ([]byte, error) {
	var value []byte
	err := r.retrier.Do(ctx, func() error {
		var opErr error
		value, opErr = r.backend.Get(ctx, id)
		return opErr
	})
	return value, err
}

func (r *retrying) Delete(ctx context.Context, id uint32) error {
	return r.retrier.Do(ctx, func() error {
		return r.backend.Delete(ctx, id)
	})
}

func (r *retrying) Close() error {
	return r.backend.Close()
}
