package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func orderKey(id string) string {
	return "payment:order:" + id
}

// reservationOrderKey holds the id of the one open order of a reservation.
func reservationOrderKey(reservationID string) string {
	return "payment:order:res:" + reservationID
}

// customerOrderKey holds the id of the order a customer is paying.
func customerOrderKey(customerID string) string {
	return "payment:order:customer:" + customerID
}

// OrderStore keeps open orders in Redis hashes that expire with the lock.
// A reservation has at most one open order at a time.
type OrderStore struct {
	rdb redis.Cmdable
}

func NewOrderStore(rdb redis.Cmdable) *OrderStore {
	return &OrderStore{rdb: rdb}
}

// Save opens o. It returns ErrOrderOpen while another order of the same
// reservation is still live.
func (s *OrderStore) Save(ctx context.Context, o *Order, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, reservationOrderKey(o.ReservationID), o.ID, ttl).Result()
	if err != nil {
		return fmt.Errorf("claim reservation order failed: %w", err)
	}
	if !ok {
		return ErrOrderOpen
	}

	key := orderKey(o.ID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"reservation_id", o.ReservationID,
			"customer_id", o.CustomerID,
			"provider_id", o.ProviderID,
			"amount", o.Amount,
			"expires_at", o.ExpiresAt.UTC().Format(time.RFC3339),
		)
		pipe.Expire(ctx, key, ttl)
		pipe.Set(ctx, customerOrderKey(o.CustomerID), o.ID, ttl)
		return nil
	})
	if err != nil {
		_ = s.rdb.Del(ctx, reservationOrderKey(o.ReservationID)).Err()
		return fmt.Errorf("save payment order failed: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*Order, error) {
	m, err := s.rdb.HGetAll(ctx, orderKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get payment order failed: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrOrderNotFound
	}

	amount, err := strconv.ParseInt(m["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode payment order amount failed: %w", err)
	}
	expires, err := time.Parse(time.RFC3339, m["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode payment order expiry failed: %w", err)
	}
	return &Order{
		ID:            id,
		ReservationID: m["reservation_id"],
		CustomerID:    m["customer_id"],
		ProviderID:    m["provider_id"],
		Amount:        amount,
		ExpiresAt:     expires,
	}, nil
}

// OpenFor returns the order customerID is currently paying.
func (s *OrderStore) OpenFor(ctx context.Context, customerID string) (*Order, error) {
	id, err := s.rdb.Get(ctx, customerOrderKey(customerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get open payment order failed: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete closes o and frees its reservation for a new order.
func (s *OrderStore) Delete(ctx context.Context, o *Order) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, orderKey(o.ID))
		// Only drop the indexes that still point at this order.
		pipe.Eval(ctx, delIfEquals, []string{reservationOrderKey(o.ReservationID)}, o.ID)
		pipe.Eval(ctx, delIfEquals, []string{customerOrderKey(o.CustomerID)}, o.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete payment order failed: %w", err)
	}
	return nil
}

const delIfEquals = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
