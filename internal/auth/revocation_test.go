package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_BlacklistAndCheck(t *testing.T) {
	registry := NewMemoryRegistry()
	ctx := context.Background()

	revoked, err := registry.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, registry.Blacklist(ctx, "token-a", time.Hour))

	revoked, err = registry.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Other tokens are unaffected
	revoked, err = registry.IsBlacklisted(ctx, "token-b")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRegistry_EntriesExpire(t *testing.T) {
	registry := NewMemoryRegistry()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }

	require.NoError(t, registry.Blacklist(ctx, "token-a", time.Hour))

	registry.now = func() time.Time { return base.Add(30 * time.Minute) }
	revoked, err := registry.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Past the TTL the entry counts as absent even before pruning
	registry.now = func() time.Time { return base.Add(2 * time.Hour) }
	revoked, err = registry.IsBlacklisted(ctx, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRegistry_PruneExpired(t *testing.T) {
	registry := NewMemoryRegistry()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return base }

	require.NoError(t, registry.Blacklist(ctx, "short-lived", time.Minute))
	require.NoError(t, registry.Blacklist(ctx, "long-lived", time.Hour))

	registry.now = func() time.Time { return base.Add(10 * time.Minute) }

	removed, err := registry.PruneExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	revoked, err := registry.IsBlacklisted(ctx, "long-lived")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestHashToken_StableAndOpaque(t *testing.T) {
	a := hashToken("some-token")
	b := hashToken("some-token")
	c := hashToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "some-token")
	assert.Len(t, a, 64)
}
