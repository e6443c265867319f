package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClaim(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	first, err := m.Claim(ctx, "post-1@rev-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.Claim(ctx, "post-1@rev-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := m.Claim(ctx, "post-1@rev-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	now = now.Add(time.Hour)
	expired, err := m.Claim(ctx, "post-1@rev-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestMemoryRelease(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.Claim(ctx, "k", DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Release(ctx, "k"))

	ok, err = m.Claim(ctx, "k", DefaultTTL)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisInvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "http://localhost:6379")
	assert.ErrorContains(t, err, "parse redis url")
}
