package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRegistry is the token blacklist consulted by the auth middleware.
// Entries expire after their TTL. The per-user revocation floor is the
// token_version column on the user row, not kept here, so a restart cannot
// resurrect tokens invalidated by a password change or forced logout.
type RevocationRegistry interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// hashToken keys registry entries by digest rather than the raw credential.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryRegistry is a process-local blacklist: a map of token digests to
// drop-after timestamps. Point-updates only; last-writer-wins is sufficient.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (r *MemoryRegistry) Blacklist(_ context.Context, token string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[hashToken(token)] = r.now().Add(ttl)
	return nil
}

func (r *MemoryRegistry) IsBlacklisted(_ context.Context, token string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dropAfter, ok := r.entries[hashToken(token)]
	if !ok {
		return false, nil
	}
	// Expired entries count as absent even before the janitor removes them
	return r.now().Before(dropAfter), nil
}

// PruneExpired removes entries whose TTL has elapsed. Called periodically by
// the background janitor.
func (r *MemoryRegistry) PruneExpired(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for digest, dropAfter := range r.entries {
		if !now.Before(dropAfter) {
			delete(r.entries, digest)
			removed++
		}
	}
	return removed, nil
}

// RedisRegistry backs the blacklist with redis so revocations survive
// restarts and are shared across instances. Expiry is delegated to redis
// key TTLs.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: "revoked:"}
}

func (r *RedisRegistry) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+hashToken(token), "1", ttl).Err()
}

func (r *RedisRegistry) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+hashToken(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneExpired is a no-op: redis drops expired keys itself.
func (r *RedisRegistry) PruneExpired(context.Context) (int, error) {
	return 0, nil
}
