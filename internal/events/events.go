// Package events publishes booking domain events for downstream consumers
// such as notification and settlement services.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// Routing keys on the booking topic exchange.
const (
	KeySlotPrefix       = "slot."
	KeyBookingConfirmed = "booking.confirmed"
)

// Publisher sends JSON events under a routing key.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
	Close() error
}

// SlotEvent reports a booked slot status change. It is published under
// "slot.<status>" in lower case, e.g. "slot.completed".
type SlotEvent struct {
	SlotID     string    `json:"slot_id"`
	ProviderID string    `json:"provider_id"`
	RuleID     string    `json:"rule_id"`
	CustomerID string    `json:"customer_id"`
	Date       string    `json:"date"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// BookingConfirmed is published once a paid hold became a booked slot.
type BookingConfirmed struct {
	SlotID        string    `json:"slot_id"`
	ReservationID string    `json:"reservation_id"`
	ProviderID    string    `json:"provider_id"`
	CustomerID    string    `json:"customer_id"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// LogPublisher writes events to the log instead of a broker. It is used
// when no RABBITMQ_URL is configured.
type LogPublisher struct{}

func (LogPublisher) PublishJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	log.Printf("[events] %s %s", key, b)
	return nil
}

func (LogPublisher) Close() error { return nil }
