// Package realtime is the reservation websocket channel. Clients join the
// room of a provider and learn about new holds on that provider's slots as
// they happen, on every server instance.
package realtime

import (
	"encoding/json"
	"time"
)

// Inbound and outbound event names of the reservation namespace.
const (
	EventJoinRoom  = "provider_room:join"
	EventLeaveRoom = "provider_room:leave"

	EventCheck  = "reservation:check"
	EventCreate = "reservation:create"

	EventReserved = "reservation:reserved"
	EventNew      = "reservation:new"
	EventInform   = "reservation:inform"
	EventError    = "reservation:error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SlotPayload names one slot of a provider.
type SlotPayload struct {
	ProviderID string    `json:"providerId,omitempty"`
	RuleID     string    `json:"ruleId,omitempty"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Date       string    `json:"date"`
}

type CreatePayload struct {
	ProviderID string    `json:"providerId"`
	RuleID     string    `json:"ruleId"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Date       string    `json:"date"`
}

type ReservationPayload struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"providerId"`
	CustomerID string    `json:"customerId"`
	RuleID     string    `json:"ruleId"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Date       string    `json:"date"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
