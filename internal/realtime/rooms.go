package realtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomTTL is how long a membership survives without being refreshed. Each
// instance re-joins its live connections well within this window, so ids
// left behind by a crashed instance age out.
const RoomTTL = 90 * time.Second

// Rooms tracks which connections sit in which provider room. Membership is
// shared by all instances. Join doubles as a refresh.
type Rooms interface {
	Join(ctx context.Context, providerID, connID string) error
	Leave(ctx context.Context, providerID, connID string) error
	Members(ctx context.Context, providerID string) ([]string, error)
}

func roomKey(providerID string) string {
	return "reservation:room:" + providerID
}

// RedisRooms keeps each room as a sorted set of connection ids scored by
// the unix millisecond at which the membership lapses.
type RedisRooms struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewRedisRooms(rdb redis.Cmdable) *RedisRooms {
	return &RedisRooms{rdb: rdb, ttl: RoomTTL, now: time.Now}
}

func (r *RedisRooms) Join(ctx context.Context, providerID, connID string) error {
	key := roomKey(providerID)
	expires := r.now().Add(r.ttl).UnixMilli()
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(expires), Member: connID})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("join room failed: %w", err)
	}
	return nil
}

func (r *RedisRooms) Leave(ctx context.Context, providerID, connID string) error {
	if err := r.rdb.ZRem(ctx, roomKey(providerID), connID).Err(); err != nil {
		return fmt.Errorf("leave room failed: %w", err)
	}
	return nil
}

// Members prunes lapsed ids and returns the rest.
func (r *RedisRooms) Members(ctx context.Context, providerID string) ([]string, error) {
	key := roomKey(providerID)
	now := strconv.FormatInt(r.now().UnixMilli(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("prune room failed: %w", err)
	}
	members, err := r.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "(" + now, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list room members failed: %w", err)
	}
	return members, nil
}
