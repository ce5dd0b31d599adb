package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptWindow     = 24 * time.Hour
	alertEveryFailure = 5
	lockAfterFailures = 10
	lockDuration      = 15 * time.Minute
)

// AttemptTracker counts failed logins per user in Redis with a TTL
// window. When Redis is unavailable it degrades to an in-process map so
// lockout still works on a single node.
type AttemptTracker struct {
	client *redis.Client

	mu       sync.Mutex
	fallback map[string]*localAttempts
}

type localAttempts struct {
	count       int64
	windowEnd   time.Time
	lockedUntil time.Time
}

func NewAttemptTracker(client *redis.Client) *AttemptTracker {
	return &AttemptTracker{
		client:   client,
		fallback: make(map[string]*localAttempts),
	}
}

func attemptKey(identifier string) string {
	return fmt.Sprintf("login_attempts:%s", identifier)
}

func lockKey(identifier string) string {
	return fmt.Sprintf("login_lock:%s", identifier)
}

// RecordFailure bumps the counter and returns the new total. Crossing
// the lock threshold arms a temporary lock.
func (t *AttemptTracker) RecordFailure(ctx context.Context, identifier string) int64 {
	if t.client != nil {
		count, err := t.client.Incr(ctx, attemptKey(identifier)).Result()
		if err == nil {
			if count == 1 {
				t.client.Expire(ctx, attemptKey(identifier), attemptWindow)
			}
			if count >= lockAfterFailures {
				t.client.Set(ctx, lockKey(identifier), "1", lockDuration)
			}
			return count
		}
		slog.Warn("redis attempt counter unavailable, using in-memory fallback", "error", err)
	}
	return t.recordFailureLocal(identifier)
}

func (t *AttemptTracker) recordFailureLocal(identifier string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	la := t.fallback[identifier]
	if la == nil || now.After(la.windowEnd) {
		la = &localAttempts{windowEnd: now.Add(attemptWindow)}
		t.fallback[identifier] = la
	}
	la.count++
	if la.count >= lockAfterFailures {
		la.lockedUntil = now.Add(lockDuration)
	}
	return la.count
}

// IsLocked reports whether the account is inside a lock window.
func (t *AttemptTracker) IsLocked(ctx context.Context, identifier string) bool {
	if t.client != nil {
		exists, err := t.client.Exists(ctx, lockKey(identifier)).Result()
		if err == nil {
			return exists > 0
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	la := t.fallback[identifier]
	return la != nil && time.Now().Before(la.lockedUntil)
}

// Clear resets the counter after a successful login.
func (t *AttemptTracker) Clear(ctx context.Context, identifier string) {
	if t.client != nil {
		if err := t.client.Del(ctx, attemptKey(identifier), lockKey(identifier)).Err(); err != nil {
			slog.Warn("failed to clear login attempts in redis", "error", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.fallback, identifier)
}
