package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

// DefaultTTL is how long an unpromoted hold blocks its slot.
const DefaultTTL = 15 * time.Minute

// RuleLookup is the part of the rule store the coordinator reads.
type RuleLookup interface {
	GetByID(ctx context.Context, id string) (*slotrule.SlotRule, error)
}

type CreateRequest struct {
	ProviderID string
	CustomerID string
	RuleID     string
	From       time.Time
	To         time.Time
	Date       time.Time
}

// Coordinator grants at most one live hold per slot. Exclusivity comes from
// the unique key in storage, never from process-local locks, so it holds
// across any number of server instances.
type Coordinator interface {
	IsReserved(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	Get(ctx context.Context, actor auth.Principal, id string) (*Reservation, error)
	// Release lets the holder abandon a hold early.
	Release(ctx context.Context, actor auth.Principal, id string) error
	// Promote drops a hold once its slot has been committed as a booking.
	Promote(ctx context.Context, id string) error
	Sweep(ctx context.Context) (int64, error)
}

type coordinator struct {
	repo     Repository
	rules    RuleLookup
	engine   *slotrule.Engine
	bookings slotrule.BookingChecker
	ttl      time.Duration
	now      func() time.Time
}

func NewCoordinator(repo Repository, rules RuleLookup, engine *slotrule.Engine, bookings slotrule.BookingChecker, ttl time.Duration) Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &coordinator{
		repo:     repo,
		rules:    rules,
		engine:   engine,
		bookings: bookings,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *coordinator) IsReserved(ctx context.Context, providerID string, from, to, date time.Time) (bool, error) {
	return s.repo.Exists(ctx, providerID, from, to, slotrule.DateOf(date))
}

func (s *coordinator) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	date := slotrule.DateOf(req.Date)

	rule, err := s.rules.GetByID(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return nil, ErrRuleInactive
	}
	if rule.ProviderID != req.ProviderID {
		return nil, ErrWrongProvider
	}
	if !s.offers(rule, req.From, req.To, date) {
		return nil, ErrSlotNotOffered
	}
	if !req.From.After(s.now()) {
		return nil, ErrSlotInPast
	}

	// A committed booking wins over any new hold. The final guard is the
	// pending index on booked slots; this only spares the customer a payment
	// that could never succeed.
	if s.bookings != nil {
		pending, err := s.bookings.IsPending(ctx, req.ProviderID, req.From, req.To, date)
		if err != nil {
			return nil, fmt.Errorf("check booked slot failed: %w", err)
		}
		if pending {
			return nil, ConflictFor(req.From, req.To, date)
		}
	}

	res := &Reservation{
		ProviderID: req.ProviderID,
		CustomerID: req.CustomerID,
		RuleID:     req.RuleID,
		Date:       date,
		From:       req.From,
		To:         req.To,
	}
	if err := s.repo.Create(ctx, res, s.ttl); err != nil {
		return nil, err
	}
	return res, nil
}

// offers reports whether rule generates exactly [from, to) on date.
func (s *coordinator) offers(rule *slotrule.SlotRule, from, to, date time.Time) bool {
	for _, slot := range s.engine.Expand(rule, date) {
		if slot.From.Equal(from) && slot.To.Equal(to) {
			return true
		}
	}
	return false
}

func (s *coordinator) Get(ctx context.Context, actor auth.Principal, id string) (*Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(res.CustomerID) && !actor.Owns(res.ProviderID) {
		return nil, ErrPermissionDenied
	}
	return res, nil
}

func (s *coordinator) Release(ctx context.Context, actor auth.Principal, id string) error {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(res.CustomerID) {
		return ErrPermissionDenied
	}
	return s.repo.Delete(ctx, id)
}

func (s *coordinator) Promote(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Swept between the booking insert and now. The booking is already
		// the authority on the slot.
		log.Printf("[reservation] promote %s: hold already gone", id)
		return nil
	}
	return err
}

func (s *coordinator) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
