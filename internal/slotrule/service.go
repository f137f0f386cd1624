package slotrule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

// maxNextProbes bounds how many occupied slots Availability skips while
// looking for the next free one.
const maxNextProbes = 256

// ReservationChecker reports whether a live hold exists on a slot.
type ReservationChecker interface {
	IsReserved(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
}

// BookingChecker reports whether a committed slot is still PENDING.
type BookingChecker interface {
	IsPending(ctx context.Context, providerID string, from, to, date time.Time) (bool, error)
}

type CreateRequest struct {
	ProviderID    string
	Name          string
	Description   string
	StartDate     time.Time
	EndDate       time.Time
	DaysOfWeek    []Weekday
	StartTime     Clock
	EndTime       Clock
	SlotDuration  int
	BreakDuration int
	Capacity      int
	IsActive      bool
	Priority      int
	ExcludeDates  []time.Time
	Price         int64
}

type UpdateRequest struct {
	Name          *string
	Description   *string
	StartDate     *time.Time
	EndDate       *time.Time
	DaysOfWeek    []Weekday
	StartTime     *Clock
	EndTime       *Clock
	SlotDuration  *int
	BreakDuration *int
	Capacity      *int
	IsActive      *bool
	Priority      *int
	ExcludeDates  []time.Time
	Price         *int64
}

type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotReserved  SlotState = "reserved"
	SlotBooked    SlotState = "booked"
)

type SlotStatus struct {
	GeneratedSlot
	State SlotState
}

// Availability is the schedule of one provider on one date.
type Availability struct {
	ProviderID string
	Date       time.Time
	Next       *GeneratedSlot // earliest free slot on or after Date, nil if none
	Slots      []SlotStatus
}

type Service interface {
	Create(ctx context.Context, actor auth.Principal, req CreateRequest) (*SlotRule, error)
	GetByID(ctx context.Context, id string) (*SlotRule, error)
	List(ctx context.Context, filter Filter) ([]*SlotRule, int, error)
	Update(ctx context.Context, actor auth.Principal, id string, req UpdateRequest) (*SlotRule, error)
	SetActive(ctx context.Context, actor auth.Principal, id string, active bool) (*SlotRule, error)
	Delete(ctx context.Context, actor auth.Principal, id string) error

	ActiveRules(ctx context.Context, providerID string) ([]*SlotRule, error)
	Availability(ctx context.Context, providerID string, date time.Time) (*Availability, error)
}

type service struct {
	repo         Repository
	engine       *Engine
	reservations ReservationChecker
	bookings     BookingChecker
	now          func() time.Time
}

func NewService(repo Repository, engine *Engine, reservations ReservationChecker, bookings BookingChecker) Service {
	return &service{
		repo:         repo,
		engine:       engine,
		reservations: reservations,
		bookings:     bookings,
		now:          time.Now,
	}
}

func (s *service) Create(ctx context.Context, actor auth.Principal, req CreateRequest) (*SlotRule, error) {
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID == "" && actor.Role == auth.RoleProvider {
		providerID = actor.UserID
	}
	if providerID != "" && !actor.Owns(providerID) {
		return nil, ErrPermissionDenied
	}

	rule := &SlotRule{
		ProviderID:    providerID,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		DaysOfWeek:    req.DaysOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		SlotDuration:  req.SlotDuration,
		BreakDuration: req.BreakDuration,
		Capacity:      req.Capacity,
		IsActive:      req.IsActive,
		Priority:      req.Priority,
		ExcludeDates:  req.ExcludeDates,
		Price:         req.Price,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*SlotRule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*SlotRule, int, error) {
	return s.repo.List(ctx, filter)
}

// owned fetches a rule and checks the actor may modify it.
func (s *service) owned(ctx context.Context, actor auth.Principal, id string) (*SlotRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(rule.ProviderID) {
		return nil, ErrPermissionDenied
	}
	return rule, nil
}

func (s *service) Update(ctx context.Context, actor auth.Principal, id string, req UpdateRequest) (*SlotRule, error) {
	rule, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		rule.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.StartDate != nil {
		rule.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		rule.EndDate = *req.EndDate
	}
	if req.DaysOfWeek != nil {
		rule.DaysOfWeek = req.DaysOfWeek
	}
	if req.StartTime != nil {
		rule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		rule.EndTime = *req.EndTime
	}
	if req.SlotDuration != nil {
		rule.SlotDuration = *req.SlotDuration
	}
	if req.BreakDuration != nil {
		rule.BreakDuration = *req.BreakDuration
	}
	if req.Capacity != nil {
		rule.Capacity = *req.Capacity
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.ExcludeDates != nil {
		rule.ExcludeDates = req.ExcludeDates
	}
	if req.Price != nil {
		rule.Price = *req.Price
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) SetActive(ctx context.Context, actor auth.Principal, id string, active bool) (*SlotRule, error) {
	rule, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	rule.IsActive = active
	return rule, nil
}

func (s *service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) ActiveRules(ctx context.Context, providerID string) ([]*SlotRule, error) {
	return s.repo.ListActiveByProvider(ctx, providerID)
}

func (s *service) Availability(ctx context.Context, providerID string, date time.Time) (*Availability, error) {
	rules, err := s.repo.ListActiveByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	day := DateOf(date)
	out := &Availability{ProviderID: providerID, Date: day}

	for _, rule := range rules {
		for _, slot := range s.engine.Expand(rule, day) {
			state, err := s.stateOf(ctx, slot)
			if err != nil {
				return nil, err
			}
			out.Slots = append(out.Slots, SlotStatus{GeneratedSlot: slot, State: state})
		}
	}
	sort.SliceStable(out.Slots, func(i, j int) bool { return out.Slots[i].From.Before(out.Slots[j].From) })

	// Search from the start of the requested day, or from now if that is later.
	cursor := s.now()
	if start := s.engine.At(day, 0); start.After(cursor) {
		// One instant earlier so a slot starting at midnight still qualifies.
		cursor = start.Add(-time.Nanosecond)
	}
	if out.Next, err = s.nextFree(ctx, rules, cursor); err != nil {
		return nil, err
	}
	return out, nil
}

// nextFree runs FindNextAvailable and skips slots that are already held or
// booked. Before the cursor moves past an occupied slot, every other slot
// starting at the same instant is tried, since it may come from a rule with
// a different slot length.
func (s *service) nextFree(ctx context.Context, rules []*SlotRule, cursor time.Time) (*GeneratedSlot, error) {
	for i := 0; i < maxNextProbes; i++ {
		slot := s.engine.FindNextAvailable(rules, cursor)
		if slot == nil {
			return nil, nil
		}
		for _, candidate := range s.sameStart(rules, *slot) {
			state, err := s.stateOf(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if state == SlotAvailable {
				return &candidate, nil
			}
		}
		cursor = slot.From
	}
	return nil, nil
}

// sameStart returns slot followed by the slots of any rule that begin at
// slot.From but differ in rule or end.
func (s *service) sameStart(rules []*SlotRule, slot GeneratedSlot) []GeneratedSlot {
	out := []GeneratedSlot{slot}
	for _, rule := range rules {
		for _, other := range s.engine.Expand(rule, slot.Date) {
			if !other.From.Equal(slot.From) {
				continue
			}
			if other.RuleID == slot.RuleID && other.To.Equal(slot.To) {
				continue
			}
			out = append(out, other)
		}
	}
	return out
}

func (s *service) stateOf(ctx context.Context, slot GeneratedSlot) (SlotState, error) {
	if s.bookings != nil {
		pending, err := s.bookings.IsPending(ctx, slot.ProviderID, slot.From, slot.To, slot.Date)
		if err != nil {
			return "", fmt.Errorf("check booked slot failed: %w", err)
		}
		if pending {
			return SlotBooked, nil
		}
	}
	if s.reservations != nil {
		reserved, err := s.reservations.IsReserved(ctx, slot.ProviderID, slot.From, slot.To, slot.Date)
		if err != nil {
			return "", fmt.Errorf("check reservation failed: %w", err)
		}
		if reserved {
			return SlotReserved, nil
		}
	}
	return SlotAvailable, nil
}
