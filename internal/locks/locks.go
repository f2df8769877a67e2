// Package locks provides redis-backed lease locks for cross-process mutual
// exclusion. Leases auto-expire, so a crashed holder never blocks later
// acquisitions beyond the TTL.
package locks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "polyglot:lock:"

// Released only when the token still matches, so an expired lease taken over
// by another process is never deleted from under it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// Locker hands out single-shot leases keyed by name.
type Locker struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// Lease is one held lock. Release is safe to call more than once.
type Lease struct {
	client   *redis.Client
	key      string
	token    string
	released bool
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client:    client,
		ttl:       ttl,
		keyPrefix: defaultKeyPrefix,
	}
}

// Acquire attempts to take the named lease without blocking. Returns
// (nil, false, nil) when another holder already owns it.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lease, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, fmt.Errorf("locker is not initialized")
	}

	token, err := newLeaseToken()
	if err != nil {
		return nil, false, err
	}

	key := l.keyPrefix + name
	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return &Lease{
		client: l.client,
		key:    key,
		token:  token,
	}, true, nil
}

// Release gives the lease back. A lease that expired and was re-acquired by
// another process is left untouched.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.client == nil || le.released {
		return nil
	}
	le.released = true

	if err := le.client.Eval(ctx, releaseScript, []string{le.key}, le.token).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", le.key, err)
	}
	return nil
}

func newLeaseToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lease token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
