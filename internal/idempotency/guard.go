// Package idempotency records which jobs have already produced their
// external side effects so that queue redelivery does not repeat them.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateRunning = "running"
	stateDone    = "done"

	keyPrefix = "docrelay:idem:"
)

// Guard claims a key before external I/O, then either completes it or
// releases it so a later attempt can proceed.
type Guard interface {
	// Claim reports whether the caller now owns key. False means another
	// attempt is running or has already completed.
	Claim(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
	// Completed reports whether key was completed, as opposed to merely
	// claimed by a running attempt.
	Completed(ctx context.Context, key string) (bool, error)
}

// RedisGuard shares claims across processes. Keys are stored under
// docrelay:idem: with the running or done state as the value.
type RedisGuard struct {
	rdb     *redis.Client
	runTTL  time.Duration
	doneTTL time.Duration
}

func NewRedisGuard(rdb *redis.Client, runTTL, doneTTL time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, runTTL: runTTL, doneTTL: doneTTL}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.rdb.SetNX(ctx, keyPrefix+key, stateRunning, g.runTTL).Result()
}

func (g *RedisGuard) Complete(ctx context.Context, key string) error {
	return g.rdb.Set(ctx, keyPrefix+key, stateDone, g.doneTTL).Err()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, keyPrefix+key).Err()
}

func (g *RedisGuard) Completed(ctx context.Context, key string) (bool, error) {
	state, err := g.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state == stateDone, nil
}

type entry struct {
	state   string
	expires time.Time
}

// MemoryGuard is a single-process Guard.
type MemoryGuard struct {
	mu      sync.Mutex
	keys    map[string]entry
	runTTL  time.Duration
	doneTTL time.Duration
	now     func() time.Time
}

func NewMemoryGuard(runTTL, doneTTL time.Duration) *MemoryGuard {
	return &MemoryGuard{
		keys:    make(map[string]entry),
		runTTL:  runTTL,
		doneTTL: doneTTL,
		now:     time.Now,
	}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.keys[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return false, nil
	}
	g.keys[key] = entry{state: stateRunning, expires: expiry(now, g.runTTL)}
	return true, nil
}

func (g *MemoryGuard) Complete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.keys[key] = entry{state: stateDone, expires: expiry(g.now(), g.doneTTL)}
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.keys, key)
	return nil
}

func (g *MemoryGuard) Completed(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.keys[key]
	if !ok || (!e.expires.IsZero() && !g.now().Before(e.expires)) {
		return false, nil
	}
	return e.state == stateDone, nil
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
