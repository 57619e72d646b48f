package coldstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/payengine/internal/infrastructure/retry"
	"github.com/iho/payengine/internal/store/coldstore"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := coldstore.NewMemory()

	require.NoError(t, m.Put(ctx, 7, []byte("a")))
	require.Equal(t, 1, m.Len())

	got, err := m.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)

	require.NoError(t, m.Put(ctx, 7, []byte("b")))
	got, err = m.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)

	require.NoError(t, m.Delete(ctx, 7))
	_, err = m.Get(ctx, 7)
	require.ErrorIs(t, err, coldstore.ErrNotFound)
}

func TestMemory_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	m := coldstore.NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, 1, buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

// flaky fails the first failures calls to each operation with err, then
// delegates to the inner backend.
type flaky struct {
	inner    coldstore.Backend
	failures int
	err      error
	calls    int
}

func (f *flaky) fail() bool {
	f.calls++
	return f.calls <= f.failures
}

func (f *flaky) Put(ctx context.Context, id uint32, value []byte) error {
	if f.fail() {
		return f.err
	}
	return f.inner.Put(ctx, id, value)
}

func (f *flaky) Get(ctx context.Context, id uint32) ([]byte, error) {
	if f.fail() {
		return nil, f.err
	}
	return f.inner.Get(ctx, id)
}

func (f *flaky) Delete(ctx context.Context, id uint32) error {
	if f.fail() {
		return f.err
	}
	return f.inner.Delete(ctx, id)
}

func (f *flaky) Close() error { return f.inner.Close() }

func TestWithRetry_RecoversFromTransientErrors(t *testing.T) {
	ctx := context.Background()
	errBusy := errors.New("busy")
	f := &flaky{inner: coldstore.NewMemory(), failures: 2, err: errBusy}

	b := coldstore.WithRetry(f, retry.New(func(err error) bool {
		return errors.Is(err, errBusy)
	}, zerolog.Nop()))

	require.NoError(t, b.Put(ctx, 1, []byte("x")))

	got, err := b.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

func TestWithRetry_PermanentErrorFailsFast(t *testing.T) {
	ctx := context.Background()
	errCorrupt := errors.New("corrupt")
	f := &flaky{inner: coldstore.NewMemory(), failures: 100, err: errCorrupt}

	b := coldstore.WithRetry(f, retry.New(func(error) bool { return false }, zerolog.Nop()))

	require.ErrorIs(t, b.Put(ctx, 1, []byte("x")), errCorrupt)
	require.Equal(t, 1, f.calls)
}
