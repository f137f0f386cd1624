// Package paymentlock serializes payment attempts per principal with a
// Redis key set only if absent. The key expires on its own, so a crashed
// or abandoned payment never blocks its owner for longer than the TTL.
package paymentlock

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
)

// DefaultTTL bounds one payment attempt.
const DefaultTTL = 300 * time.Second

var ErrLocked = apperror.Conflict("payment already in progress")

// Key derives the lock key of a principal: payment:{userId}:{role}.
func Key(userID string, role auth.Role) string {
	return fmt.Sprintf("payment:%s:%s", userID, role)
}

type Locker struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewLocker(rdb redis.Cmdable, ttl time.Duration) *Locker {
	if ttl < time.Second {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// TTL is the lifetime used when Acquire is given none.
func (l *Locker) TTL() time.Duration {
	return l.ttl
}

// Acquire sets key for ttl unless it exists. It reports true only when this
// call created the key. A second concurrent attempt gets false at once; it
// is never queued.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	ok, err := l.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire payment lock failed: %w", err)
	}
	return ok, nil
}

func (l *Locker) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check payment lock failed: %w", err)
	}
	return n > 0, nil
}

// RemainingTTL returns how long key stays locked, zero when it is free.
func (l *Locker) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read payment lock ttl failed: %w", err)
	}
	// Redis answers -2 for a missing key and -1 for one without expiry.
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (l *Locker) Release(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release payment lock failed: %w", err)
	}
	return nil
}

// LockedError builds the conflict returned to a caller that must wait,
// carrying the wait in whole seconds.
func LockedError(remaining time.Duration) error {
	secs := RetryAfterSeconds(remaining)
	return ErrLocked.WithDetails(map[string]any{"retry_after": secs})
}

// RetryAfterSeconds rounds a wait up to whole seconds, at least one.
func RetryAfterSeconds(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func retryAfterHeader(remaining time.Duration) string {
	return strconv.Itoa(RetryAfterSeconds(remaining))
}
