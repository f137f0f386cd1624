package http

import (
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

type SlotRuleResponse struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	DaysOfWeek    []string  `json:"days_of_week"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	SlotDuration  int       `json:"slot_duration"`
	BreakDuration int       `json:"break_duration"`
	Capacity      int       `json:"capacity"`
	IsActive      bool      `json:"is_active"`
	Priority      int       `json:"priority"`
	ExcludeDates  []string  `json:"exclude_dates"`
	Price         int64     `json:"price"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewSlotRuleResponse(r *slotrule.SlotRule) SlotRuleResponse {
	days := make([]string, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		days[i] = string(d)
	}
	excluded := make([]string, len(r.ExcludeDates))
	for i, d := range r.ExcludeDates {
		excluded[i] = d.Format(request.DateLayout)
	}
	return SlotRuleResponse{
		ID:            r.ID,
		ProviderID:    r.ProviderID,
		Name:          r.Name,
		Description:   r.Description,
		StartDate:     r.StartDate.Format(request.DateLayout),
		EndDate:       r.EndDate.Format(request.DateLayout),
		DaysOfWeek:    days,
		StartTime:     r.StartTime.String(),
		EndTime:       r.EndTime.String(),
		SlotDuration:  r.SlotDuration,
		BreakDuration: r.BreakDuration,
		Capacity:      r.Capacity,
		IsActive:      r.IsActive,
		Priority:      r.Priority,
		ExcludeDates:  excluded,
		Price:         r.Price,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type SlotResponse struct {
	RuleID string    `json:"rule_id"`
	Date   string    `json:"date"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	State  string    `json:"state,omitempty"`
}

func NewSlotResponse(s slotrule.GeneratedSlot) SlotResponse {
	return SlotResponse{
		RuleID: s.RuleID,
		Date:   s.Date.Format(request.DateLayout),
		From:   s.From,
		To:     s.To,
	}
}

type AvailabilityResponse struct {
	ProviderID string         `json:"provider_id"`
	Date       string         `json:"date"`
	Next       *SlotResponse  `json:"next"`
	Slots      []SlotResponse `json:"slots"`
}

func NewAvailabilityResponse(a *slotrule.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		ProviderID: a.ProviderID,
		Date:       a.Date.Format(request.DateLayout),
		Slots:      make([]SlotResponse, len(a.Slots)),
	}
	if a.Next != nil {
		next := NewSlotResponse(*a.Next)
		resp.Next = &next
	}
	for i, s := range a.Slots {
		resp.Slots[i] = NewSlotResponse(s.GeneratedSlot)
		resp.Slots[i].State = string(s.State)
	}
	return resp
}

// CreateRuleBody is the payload of POST /rule. Times are HH:mm, dates YYYY-MM-DD.
type CreateRuleBody struct {
	ProviderID    string   `json:"provider_id" binding:"omitempty,uuid"`
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	StartDate     string   `json:"start_date" binding:"required"`
	EndDate       string   `json:"end_date" binding:"required"`
	DaysOfWeek    []string `json:"days_of_week" binding:"required,min=1"`
	StartTime     string   `json:"start_time" binding:"required"`
	EndTime       string   `json:"end_time" binding:"required"`
	SlotDuration  int      `json:"slot_duration" binding:"required,min=1"`
	BreakDuration int      `json:"break_duration" binding:"min=0"`
	Capacity      int      `json:"capacity" binding:"omitempty,min=1"`
	IsActive      *bool    `json:"is_active"`
	Priority      int      `json:"priority"`
	ExcludeDates  []string `json:"exclude_dates"`
	Price         int64    `json:"price" binding:"min=0"`
}

// ToRequest parses the wire formats into a service request.
func (b *CreateRuleBody) ToRequest() (slotrule.CreateRequest, error) {
	req := slotrule.CreateRequest{
		ProviderID:    b.ProviderID,
		Name:          b.Name,
		Description:   b.Description,
		SlotDuration:  b.SlotDuration,
		BreakDuration: b.BreakDuration,
		Capacity:      b.Capacity,
		IsActive:      true,
		Priority:      b.Priority,
		Price:         b.Price,
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if b.IsActive != nil {
		req.IsActive = *b.IsActive
	}

	var err error
	if req.StartDate, err = slotrule.ParseDate(b.StartDate); err != nil {
		return req, err
	}
	if req.EndDate, err = slotrule.ParseDate(b.EndDate); err != nil {
		return req, err
	}
	if req.StartTime, err = slotrule.ParseClock(b.StartTime); err != nil {
		return req, err
	}
	if req.EndTime, err = slotrule.ParseClock(b.EndTime); err != nil {
		return req, err
	}
	if req.DaysOfWeek, err = parseDays(b.DaysOfWeek); err != nil {
		return req, err
	}
	if req.ExcludeDates, err = parseDates(b.ExcludeDates); err != nil {
		return req, err
	}
	return req, nil
}

// UpdateRuleBody is the payload of PUT /rule/:ruleId; omitted fields are kept.
type UpdateRuleBody struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	DaysOfWeek    []string `json:"days_of_week" binding:"omitempty,min=1"`
	StartTime     *string  `json:"start_time"`
	EndTime       *string  `json:"end_time"`
	SlotDuration  *int     `json:"slot_duration" binding:"omitempty,min=1"`
	BreakDuration *int     `json:"break_duration" binding:"omitempty,min=0"`
	Capacity      *int     `json:"capacity" binding:"omitempty,min=1"`
	IsActive      *bool    `json:"is_active"`
	Priority      *int     `json:"priority"`
	ExcludeDates  []string `json:"exclude_dates"`
	Price         *int64   `json:"price" binding:"omitempty,min=0"`
}

func (b *UpdateRuleBody) ToRequest() (slotrule.UpdateRequest, error) {
	req := slotrule.UpdateRequest{
		Name:          b.Name,
		Description:   b.Description,
		SlotDuration:  b.SlotDuration,
		BreakDuration: b.BreakDuration,
		Capacity:      b.Capacity,
		IsActive:      b.IsActive,
		Priority:      b.Priority,
		Price:         b.Price,
	}

	if b.StartDate != nil {
		d, err := slotrule.ParseDate(*b.StartDate)
		if err != nil {
			return req, err
		}
		req.StartDate = &d
	}
	if b.EndDate != nil {
		d, err := slotrule.ParseDate(*b.EndDate)
		if err != nil {
			return req, err
		}
		req.EndDate = &d
	}
	if b.StartTime != nil {
		c, err := slotrule.ParseClock(*b.StartTime)
		if err != nil {
			return req, err
		}
		req.StartTime = &c
	}
	if b.EndTime != nil {
		c, err := slotrule.ParseClock(*b.EndTime)
		if err != nil {
			return req, err
		}
		req.EndTime = &c
	}

	var err error
	if b.DaysOfWeek != nil {
		if req.DaysOfWeek, err = parseDays(b.DaysOfWeek); err != nil {
			return req, err
		}
	}
	if b.ExcludeDates != nil {
		if req.ExcludeDates, err = parseDates(b.ExcludeDates); err != nil {
			return req, err
		}
	}
	return req, nil
}

type SetStatusBody struct {
	RuleID   string `json:"rule_id" binding:"required,uuid"`
	IsActive *bool  `json:"is_active" binding:"required"`
}

type RuleURI struct {
	RuleID string `uri:"ruleId" binding:"required,uuid"`
}

type ProviderURI struct {
	ProviderID string `uri:"providerId" binding:"required,uuid"`
}

type AvailabilityQuery struct {
	Date string `form:"date"`
}

type ListRulesRequest struct {
	request.ListParams
	ProviderID string `form:"provider_id" binding:"omitempty,uuid"`
	IsActive   *bool  `form:"is_active"`
	Date       string `form:"date"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=created_at priority start_date name"`
}

func parseDays(in []string) ([]slotrule.Weekday, error) {
	out := make([]slotrule.Weekday, len(in))
	for i, s := range in {
		w, err := slotrule.ParseWeekday(s)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func parseDates(in []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(in))
	for _, s := range in {
		d, err := slotrule.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
