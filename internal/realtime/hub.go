package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

// Reservations is the part of the coordinator the channel drives.
type Reservations interface {
	IsReserved(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
	Create(ctx context.Context, req reservation.CreateRequest) (*reservation.Reservation, error)
}

// Hub owns the connections of this instance. Room membership lives in
// Rooms and cross-instance delivery goes through Bus, so the local map only
// resolves connection ids to sockets.
type Hub struct {
	holds    Reservations
	bookings slotrule.BookingChecker
	rooms    Rooms
	bus      Bus

	mu      sync.RWMutex
	clients map[string]*Client

	refreshEvery time.Duration
}

func NewHub(holds Reservations, bookings slotrule.BookingChecker, rooms Rooms, bus Bus) *Hub {
	return &Hub{
		holds:    holds,
		bookings: bookings,
		rooms:    rooms,
		bus:      bus,
		clients:  make(map[string]*Client),

		refreshEvery: RoomTTL / 3,
	}
}

// Start subscribes to the bus and delivers informs to local room members
// until ctx is done. It also keeps the memberships of local connections
// from lapsing.
func (h *Hub) Start(ctx context.Context) error {
	msgs, err := h.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			h.deliver(ctx, msg)
		}
	}()
	go h.keepRooms(ctx)
	return nil
}

func (h *Hub) keepRooms(ctx context.Context) {
	ticker := time.NewTicker(h.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.refreshRooms(ctx)
		}
	}
}

// refreshRooms re-joins every room a local connection sits in.
func (h *Hub) refreshRooms(ctx context.Context) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		for _, providerID := range c.joined() {
			if err := h.rooms.Join(ctx, providerID, c.id); err != nil {
				log.Printf("[realtime] refresh %s in %s: %v", c.id, providerID, err)
			}
		}
	}
}

// Close drops every local connection.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

// Announce tells the provider room about a hold created outside the
// channel, e.g. through REST.
func (h *Hub) Announce(ctx context.Context, res *reservation.Reservation) error {
	return h.bus.Publish(ctx, informOf(res, ""))
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	for _, providerID := range c.joined() {
		if err := h.rooms.Leave(ctx, providerID, c.id); err != nil {
			log.Printf("[realtime] %s leave %s: %v", c.id, providerID, err)
		}
	}
}

func (h *Hub) local(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *Hub) deliver(ctx context.Context, msg Inform) {
	members, err := h.rooms.Members(ctx, msg.ProviderID)
	if err != nil {
		log.Printf("[realtime] deliver inform for %s: %v", msg.ProviderID, err)
		return
	}

	frame, err := encode(EventInform, SlotPayload{From: msg.From, To: msg.To, Date: msg.Date})
	if err != nil {
		log.Printf("[realtime] encode inform: %v", err)
		return
	}
	for _, id := range members {
		if id == msg.Origin {
			continue
		}
		if c, ok := h.local(id); ok {
			c.Send(frame)
		}
	}
}

// handle processes one inbound frame. It runs on the connection's reader
// goroutine, so the frames of one connection are handled in order.
func (h *Hub) handle(ctx context.Context, c *Client, env Envelope) {
	switch env.Event {
	case EventJoinRoom, EventLeaveRoom:
		var providerID string
		if err := json.Unmarshal(env.Data, &providerID); err != nil || !isUUID(providerID) {
			c.emitError("data must be a provider id")
			return
		}
		h.room(ctx, c, env.Event, providerID)
	case EventCheck:
		var p SlotPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.emitError("invalid slot")
			return
		}
		h.check(ctx, c, p)
	case EventCreate:
		var p CreatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.emitError("invalid reservation")
			return
		}
		h.create(ctx, c, p)
	default:
		c.emitError("unknown event " + env.Event)
	}
}

func (h *Hub) room(ctx context.Context, c *Client, event, providerID string) {
	var err error
	if event == EventJoinRoom {
		if err = h.rooms.Join(ctx, providerID, c.id); err == nil {
			c.setRoom(providerID, true)
		}
	} else {
		if err = h.rooms.Leave(ctx, providerID, c.id); err == nil {
			c.setRoom(providerID, false)
		}
	}
	if err != nil {
		log.Printf("[realtime] %s %s %s: %v", c.id, event, providerID, err)
		c.emitError("internal server error")
	}
}

func (h *Hub) check(ctx context.Context, c *Client, p SlotPayload) {
	if !isUUID(p.ProviderID) {
		c.emitError("providerId must be a uuid")
		return
	}
	date, err := slotrule.ParseDate(p.Date)
	if err != nil {
		c.emitError(err.Error())
		return
	}

	reserved, err := h.holds.IsReserved(ctx, p.ProviderID, p.From, p.To, date)
	if err == nil && !reserved && h.bookings != nil {
		reserved, err = h.bookings.IsPending(ctx, p.ProviderID, p.From, p.To, date)
	}
	if err != nil {
		c.emitFailure(err)
		return
	}
	if reserved {
		c.emit(EventReserved, SlotPayload{From: p.From, To: p.To, Date: p.Date})
	}
}

func (h *Hub) create(ctx context.Context, c *Client, p CreatePayload) {
	if c.principal.Role != auth.RoleCustomer {
		c.emitError("only customers can hold slots")
		return
	}
	if !isUUID(p.ProviderID) {
		c.emitError("providerId must be a uuid")
		return
	}
	if !isUUID(p.RuleID) {
		c.emitError("ruleId must be a uuid")
		return
	}
	date, err := slotrule.ParseDate(p.Date)
	if err != nil {
		c.emitError(err.Error())
		return
	}

	res, err := h.holds.Create(ctx, reservation.CreateRequest{
		ProviderID: p.ProviderID,
		CustomerID: c.principal.UserID,
		RuleID:     p.RuleID,
		From:       p.From,
		To:         p.To,
		Date:       date,
	})
	if err != nil {
		if errors.Is(err, reservation.ErrConflict) {
			c.emit(EventReserved, SlotPayload{From: p.From, To: p.To, Date: p.Date})
			return
		}
		c.emitFailure(err)
		return
	}

	c.emit(EventNew, reservationPayload(res))
	if err := h.bus.Publish(ctx, informOf(res, c.id)); err != nil {
		log.Printf("[realtime] inform room %s: %v", res.ProviderID, err)
	}
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func informOf(res *reservation.Reservation, origin string) Inform {
	return Inform{
		ProviderID: res.ProviderID,
		Origin:     origin,
		From:       res.From,
		To:         res.To,
		Date:       res.Date.Format(request.DateLayout),
	}
}

func reservationPayload(res *reservation.Reservation) ReservationPayload {
	return ReservationPayload{
		ID:         res.ID,
		ProviderID: res.ProviderID,
		CustomerID: res.CustomerID,
		RuleID:     res.RuleID,
		From:       res.From,
		To:         res.To,
		Date:       res.Date.Format(request.DateLayout),
		ExpiresAt:  res.ExpiresAt,
	}
}

// failureMessage exposes client errors as is and hides server faults.
func failureMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code < http.StatusInternalServerError {
		return appErr.Message
	}
	return "internal server error"
}
