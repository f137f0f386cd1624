package bookedslot

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/events"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
)

type ReserveRequest struct {
	ProviderID string
	RuleID     string
	CustomerID string
	PaymentRef string
	Date       time.Time
	From       time.Time
	To         time.Time
}

// Service is the booked slot state machine:
//
//	AVAILABLE -> PENDING -> RELEASED | COMPLETED | CANCELLED
//
// Each transition is one conditional statement in storage and fails with
// ErrTransitionFailed when the slot is not in the required source state.
type Service interface {
	Reserve(ctx context.Context, req ReserveRequest) (*BookedSlot, error)
	Release(ctx context.Context, key Key) (*BookedSlot, error)
	Complete(ctx context.Context, key Key) (*BookedSlot, error)
	Cancel(ctx context.Context, key Key) (*BookedSlot, error)

	// SetStatus applies a transition on behalf of actor to the slot id.
	SetStatus(ctx context.Context, actor auth.Principal, id string, to Status) (*BookedSlot, error)

	IsPending(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
	Get(ctx context.Context, actor auth.Principal, id string) (*BookedSlot, error)
	List(ctx context.Context, filter Filter) ([]*BookedSlot, int, error)
}

type service struct {
	repo      Repository
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &service{repo: repo, publisher: publisher, now: time.Now}
}

func (s *service) Reserve(ctx context.Context, req ReserveRequest) (*BookedSlot, error) {
	slot := &BookedSlot{
		ProviderID: req.ProviderID,
		RuleID:     req.RuleID,
		CustomerID: req.CustomerID,
		PaymentRef: req.PaymentRef,
		Date:       req.Date,
		From:       req.From,
		To:         req.To,
	}
	if err := s.repo.Reserve(ctx, slot); err != nil {
		if errors.Is(err, ErrAlreadyPending) {
			return nil, ErrAlreadyPending.WithDetails(map[string]any{
				"from": req.From,
				"to":   req.To,
				"date": req.Date.Format(request.DateLayout),
			})
		}
		return nil, err
	}
	s.publish(ctx, slot)
	return slot, nil
}

func (s *service) Release(ctx context.Context, key Key) (*BookedSlot, error) {
	return s.transition(ctx, key, StatusReleased)
}

func (s *service) Complete(ctx context.Context, key Key) (*BookedSlot, error) {
	return s.transition(ctx, key, StatusCompleted)
}

func (s *service) Cancel(ctx context.Context, key Key) (*BookedSlot, error) {
	return s.transition(ctx, key, StatusCancelled)
}

func (s *service) transition(ctx context.Context, key Key, to Status) (*BookedSlot, error) {
	slot, err := s.repo.Transition(ctx, key, to)
	if err != nil {
		if errors.Is(err, ErrTransitionFailed) {
			// Either a concurrent transition won or the slot was never pending.
			log.Printf("[bookedslot] %s matched no pending slot: rule=%s date=%s from=%s to=%s",
				to, key.RuleID, key.Date.Format(request.DateLayout),
				key.From.Format(time.RFC3339), key.To.Format(time.RFC3339))
		}
		return nil, err
	}
	s.publish(ctx, slot)
	return slot, nil
}

func (s *service) SetStatus(ctx context.Context, actor auth.Principal, id string, to Status) (*BookedSlot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !mayApply(actor, slot, to) {
		return nil, ErrPermissionDenied
	}
	return s.transition(ctx, slot.Key(), to)
}

// mayApply: providers run their own schedule; a customer may only cancel
// their own booking.
func mayApply(actor auth.Principal, slot *BookedSlot, to Status) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RoleProvider:
		return actor.Owns(slot.ProviderID)
	case auth.RoleCustomer:
		return to == StatusCancelled && actor.Owns(slot.CustomerID)
	}
	return false
}

func (s *service) IsPending(ctx context.Context, providerID string, from, to, date time.Time) (bool, error) {
	return s.repo.IsPending(ctx, providerID, from, to, date)
}

func (s *service) Get(ctx context.Context, actor auth.Principal, id string) (*BookedSlot, error) {
	slot, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(slot.ProviderID) && !actor.Owns(slot.CustomerID) {
		return nil, ErrPermissionDenied
	}
	return slot, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*BookedSlot, int, error) {
	return s.repo.List(ctx, filter)
}

// publish logs failures; the transition has already committed.
func (s *service) publish(ctx context.Context, slot *BookedSlot) {
	ev := events.SlotEvent{
		SlotID:     slot.ID,
		ProviderID: slot.ProviderID,
		RuleID:     slot.RuleID,
		CustomerID: slot.CustomerID,
		Date:       slot.Date.Format(request.DateLayout),
		From:       slot.From,
		To:         slot.To,
		Status:     string(slot.Status),
		At:         s.now().UTC(),
	}
	key := events.KeySlotPrefix + strings.ToLower(string(slot.Status))
	if err := s.publisher.PublishJSON(ctx, key, ev); err != nil {
		log.Printf("[bookedslot] publish %s for slot %s failed: %v", key, slot.ID, err)
	}
}
