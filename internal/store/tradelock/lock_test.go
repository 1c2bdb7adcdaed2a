package tradelock

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireOncePerDay(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	h, ok, err := s.Acquire(ctx, "2025-03-14", "run-a", "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "run-a", h.RunID)
	assert.True(t, h.Fresh)

	h, ok, err = s.Acquire(ctx, "2025-03-14", "run-b", "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "run-a", h.RunID)
	assert.Equal(t, "AAPL", h.Symbol)

	h, ok, err = s.Acquire(ctx, "2025-03-14", "run-a", "AAPL")
	require.NoError(t, err)
	assert.True(t, ok, "the holder may replay its own run")
	assert.False(t, h.Fresh)

	_, ok, err = s.Acquire(ctx, "2025-03-17", "run-b", "MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHolderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, _, err = s.Acquire(context.Background(), "2025-03-14", "run-a", "AAPL")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	h, found, err := s.Holder(context.Background(), "2025-03-14")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "run-a", h.RunID)

	_, found, err = s.Holder(context.Background(), "2025-03-15")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, _, err = s.Acquire(context.Background(), "2025-03-14", "run-a", "AAPL")
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}

func TestReleaseOnlyDropsOwnLock(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.Acquire(ctx, "2025-03-14", "run-a", "AAPL")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Release(ctx, "2025-03-14", "run-b"))
	h, found, err := s.Holder(ctx, "2025-03-14")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-a", h.RunID)

	require.NoError(t, s.Release(ctx, "2025-03-14", "run-a"))
	_, found, err = s.Holder(ctx, "2025-03-14")
	require.NoError(t, err)
	assert.False(t, found)

	h, ok, err = s.Acquire(ctx, "2025-03-14", "run-b", "MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.Fresh)
}
