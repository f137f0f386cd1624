package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// InformChannel is the pub/sub channel carrying new holds between instances.
const InformChannel = "reservation:inform"

// Inform announces a new hold to a provider room. Origin is the connection
// that created it and is skipped on delivery.
type Inform struct {
	ProviderID string    `json:"providerId"`
	Origin     string    `json:"origin"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Date       string    `json:"date"`
}

// Bus fans informs out to every instance, this one included.
type Bus interface {
	Publish(ctx context.Context, msg Inform) error
	// Subscribe returns once the subscription is live. Messages arrive on
	// the channel until ctx is done.
	Subscribe(ctx context.Context) (<-chan Inform, error)
}

type RedisBus struct {
	rdb redis.UniversalClient
}

func NewRedisBus(rdb redis.UniversalClient) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, msg Inform) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode inform failed: %w", err)
	}
	if err := b.rdb.Publish(ctx, InformChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish inform failed: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Inform, error) {
	sub := b.rdb.Subscribe(ctx, InformChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s failed: %w", InformChannel, err)
	}

	out := make(chan Inform)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var msg Inform
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					log.Printf("[realtime] drop malformed inform: %v", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
