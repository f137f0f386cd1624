// Package payment drives a customer from a live hold to a booked slot. One
// payment per principal runs at a time, serialized by the payment lock.
package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/bookedslot"
	"github.com/nekogravitycat/marketplace-backend/internal/events"
	"github.com/nekogravitycat/marketplace-backend/internal/paymentlock"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
)

// Holds is the part of the reservation coordinator a payment needs.
type Holds interface {
	Get(ctx context.Context, actor auth.Principal, id string) (*reservation.Reservation, error)
	Promote(ctx context.Context, id string) error
}

// Bookings commits a paid hold.
type Bookings interface {
	Reserve(ctx context.Context, req bookedslot.ReserveRequest) (*bookedslot.BookedSlot, error)
}

type Service interface {
	Initiate(ctx context.Context, actor auth.Principal, reservationID string) (*Order, error)
	Confirm(ctx context.Context, actor auth.Principal, req ConfirmRequest) (*Confirmation, error)
	Abort(ctx context.Context, actor auth.Principal) error
}

type ConfirmRequest struct {
	ReservationID string
	OrderID       string
	PaymentID     string
	Signature     string
}

type service struct {
	locker    *paymentlock.Locker
	orders    *OrderStore
	gateway   Gateway
	holds     Holds
	rules     reservation.RuleLookup
	bookings  Bookings
	publisher events.Publisher
	now       func() time.Time
}

func NewService(
	locker *paymentlock.Locker,
	orders *OrderStore,
	gateway Gateway,
	holds Holds,
	rules reservation.RuleLookup,
	bookings Bookings,
	publisher events.Publisher,
) Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &service{
		locker:    locker,
		orders:    orders,
		gateway:   gateway,
		holds:     holds,
		rules:     rules,
		bookings:  bookings,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *service) Initiate(ctx context.Context, actor auth.Principal, reservationID string) (*Order, error) {
	if actor.Role != auth.RoleCustomer {
		return nil, ErrCustomerOnly
	}

	key := paymentlock.Key(actor.UserID, actor.Role)
	ok, err := s.locker.Acquire(ctx, key, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		remaining, err := s.locker.RemainingTTL(ctx, key)
		if err != nil {
			return nil, err
		}
		return nil, paymentlock.LockedError(remaining)
	}

	order, err := s.open(ctx, actor, reservationID)
	if err != nil {
		s.release(key)
		return nil, err
	}
	return order, nil
}

func (s *service) open(ctx context.Context, actor auth.Principal, reservationID string) (*Order, error) {
	res, err := s.holds.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	if res.CustomerID != actor.UserID {
		return nil, ErrPermissionDenied
	}

	rule, err := s.rules.GetByID(ctx, res.RuleID)
	if err != nil {
		return nil, err
	}

	orderID, err := s.gateway.CreateOrder(ctx, rule.Price, res.ID)
	if err != nil {
		return nil, err
	}

	ttl := s.locker.TTL()
	order := &Order{
		ID:            orderID,
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		ProviderID:    res.ProviderID,
		Amount:        rule.Price,
		ExpiresAt:     s.now().Add(ttl).UTC(),
	}
	if err := s.orders.Save(ctx, order, ttl); err != nil {
		return nil, err
	}
	log.Printf("[payment] order %s opened for reservation %s amount=%d", order.ID, res.ID, order.Amount)
	return order, nil
}

// Confirm commits the hold once the gateway signature checks out. The
// payer's lock is released whatever the outcome.
func (s *service) Confirm(ctx context.Context, actor auth.Principal, req ConfirmRequest) (*Confirmation, error) {
	if actor.Role != auth.RoleCustomer {
		return nil, ErrCustomerOnly
	}
	defer s.release(paymentlock.Key(actor.UserID, actor.Role))

	order, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	if order.ReservationID != req.ReservationID {
		return nil, ErrOrderMismatch
	}

	// An order is spent by its first confirmation attempt. Unless that
	// attempt books the slot, the order is closed so it can never be paid
	// after a newer order of the same reservation.
	booked := false
	defer func() {
		if !booked {
			s.discard(order)
		}
	}()

	if err := s.gateway.Verify(req.OrderID, req.PaymentID, req.Signature); err != nil {
		return nil, err
	}

	res, err := s.holds.Get(ctx, actor, req.ReservationID)
	if err != nil {
		return nil, err
	}

	slot, err := s.bookings.Reserve(ctx, bookedslot.ReserveRequest{
		ProviderID: res.ProviderID,
		RuleID:     res.RuleID,
		CustomerID: res.CustomerID,
		PaymentRef: order.ID,
		Date:       res.Date,
		From:       res.From,
		To:         res.To,
	})
	if err != nil {
		return nil, err
	}
	booked = true

	if err := s.holds.Promote(ctx, res.ID); err != nil {
		// The booked slot now guards the time; a leftover hold expires.
		log.Printf("[payment] promote reservation %s failed: %v", res.ID, err)
	}
	if err := s.orders.Delete(ctx, order); err != nil {
		log.Printf("[payment] %v", err)
	}

	conf := &Confirmation{
		SlotID:        slot.ID,
		ReservationID: res.ID,
		OrderID:       order.ID,
		PaymentID:     req.PaymentID,
		Amount:        order.Amount,
		From:          slot.From,
		To:            slot.To,
		ConfirmedAt:   s.now().UTC(),
	}
	ev := events.BookingConfirmed{
		SlotID:        conf.SlotID,
		ReservationID: conf.ReservationID,
		ProviderID:    slot.ProviderID,
		CustomerID:    slot.CustomerID,
		OrderID:       conf.OrderID,
		PaymentID:     conf.PaymentID,
		Amount:        conf.Amount,
		From:          conf.From,
		To:            conf.To,
		ConfirmedAt:   conf.ConfirmedAt,
	}
	if err := s.publisher.PublishJSON(ctx, events.KeyBookingConfirmed, ev); err != nil {
		log.Printf("[payment] publish %s for slot %s failed: %v", events.KeyBookingConfirmed, slot.ID, err)
	}
	return conf, nil
}

// Abort closes the caller's open order, if any, and frees the lock.
func (s *service) Abort(ctx context.Context, actor auth.Principal) error {
	order, err := s.orders.OpenFor(ctx, actor.UserID)
	switch {
	case err == nil:
		if err := s.orders.Delete(ctx, order); err != nil {
			return err
		}
	case !errors.Is(err, ErrOrderNotFound):
		return err
	}
	return s.locker.Release(ctx, paymentlock.Key(actor.UserID, actor.Role))
}

// discard closes an order that will not be booked, on its own context.
func (s *service) discard(o *Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.orders.Delete(ctx, o); err != nil {
		log.Printf("[payment] discard order %s: %v", o.ID, err)
	}
}

// release runs on its own context so a cancelled request still frees the lock.
func (s *service) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.locker.Release(ctx, key); err != nil {
		log.Printf("[payment] release %s: %v", key, err)
	}
}
