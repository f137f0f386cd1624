package slotrule

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.NotFound("slot rule not found")
	ErrPermissionDenied    = apperror.New(http.StatusForbidden, "permission denied")
	ErrNameRequired        = apperror.Validation("name is required")
	ErrProviderRequired    = apperror.Validation("provider_id is required")
	ErrInvalidDateRange    = apperror.Validation("start_date must not be after end_date")
	ErrInvalidTimeWindow   = apperror.Validation("start_time must be before end_time")
	ErrInvalidTimeFormat   = apperror.Validation("times must use the HH:mm format")
	ErrInvalidSlotDuration = apperror.Validation("slot_duration must be greater than zero")
	ErrInvalidBreak        = apperror.Validation("break_duration must not be negative")
	ErrInvalidCapacity     = apperror.Validation("capacity must be at least one")
	ErrInvalidPrice        = apperror.Validation("price must not be negative")
	ErrDaysRequired        = apperror.Validation("days_of_week must name at least one weekday")
	ErrInvalidWeekday      = apperror.Validation("days_of_week contains an unknown weekday")
	ErrInvalidDate         = apperror.Validation("dates must use the YYYY-MM-DD format")
	ErrRuleInUse           = apperror.Conflict("slot rule has booked slots; disable it instead")
)

// Weekday is the wire token of a day of week ("monday", "tuesday", ...).
type Weekday string

var weekdayTokens = map[Weekday]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts a weekday token in any letter case.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weekdayTokens[w]; !ok {
		return "", ErrInvalidWeekday
	}
	return w, nil
}

// Clock is a local time of day in minutes after midnight.
type Clock int

// LastClock is the latest storable time of day. TIME '24:00' would not read
// back as HH:mm.
const LastClock Clock = 23*60 + 59

// ParseClock parses "HH:mm" (and the "HH:mm:ss" form Postgres returns for TIME).
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, ErrInvalidTimeFormat
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// SlotRule is a provider's recurring availability template.
//
// StartDate, EndDate and ExcludeDates are calendar dates: only their
// year/month/day fields are meaningful (see DateOf).
type SlotRule struct {
	ID            string
	ProviderID    string
	Name          string
	Description   string
	StartDate     time.Time
	EndDate       time.Time
	DaysOfWeek    []Weekday
	StartTime     Clock
	EndTime       Clock
	SlotDuration  int // minutes
	BreakDuration int // minutes
	Capacity      int
	IsActive      bool
	Priority      int
	ExcludeDates  []time.Time
	Price         int64 // minor currency units
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the rule invariants and normalizes days and exclusions.
// Rules are validated when written so expansion can trust them.
func (r *SlotRule) Validate() error {
	if strings.TrimSpace(r.ProviderID) == "" {
		return ErrProviderRequired
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrNameRequired
	}
	r.StartDate, r.EndDate = DateOf(r.StartDate), DateOf(r.EndDate)
	if r.StartDate.After(r.EndDate) {
		return ErrInvalidDateRange
	}
	if r.StartTime < 0 || r.EndTime > LastClock || r.StartTime >= r.EndTime {
		return ErrInvalidTimeWindow
	}
	if r.SlotDuration <= 0 {
		return ErrInvalidSlotDuration
	}
	if r.BreakDuration < 0 {
		return ErrInvalidBreak
	}
	if r.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}

	days := make([]Weekday, 0, len(r.DaysOfWeek))
	seen := make(map[Weekday]struct{}, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		w, err := ParseWeekday(string(d))
		if err != nil {
			return err
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		days = append(days, w)
	}
	if len(days) == 0 {
		return ErrDaysRequired
	}
	sort.Slice(days, func(i, j int) bool { return weekdayTokens[days[i]] < weekdayTokens[days[j]] })
	r.DaysOfWeek = days

	r.ExcludeDates = normalizeDates(r.ExcludeDates)
	return nil
}

// Accepts reports whether the rule is bookable on the given calendar date.
func (r *SlotRule) Accepts(date time.Time) bool {
	day := DateOf(date)
	if day.Before(DateOf(r.StartDate)) || day.After(DateOf(r.EndDate)) {
		return false
	}
	if !r.onWeekday(day.Weekday()) {
		return false
	}
	for _, ex := range r.ExcludeDates {
		if DateOf(ex).Equal(day) {
			return false
		}
	}
	return true
}

func (r *SlotRule) onWeekday(wd time.Weekday) bool {
	for _, d := range r.DaysOfWeek {
		if w, ok := weekdayTokens[d]; ok && w == wd {
			return true
		}
	}
	return false
}

// GeneratedSlot is one concrete bookable window of a rule on a date. It is
// computed on demand and never stored.
type GeneratedSlot struct {
	RuleID     string
	ProviderID string
	Date       time.Time // calendar date
	From       time.Time
	To         time.Time
}

// Filter defines parameters for listing slot rules.
type Filter struct {
	ProviderID string
	IsActive   *bool
	Date       *time.Time // rules whose date range covers this date
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// DateOf truncates t to its calendar date, keeping t's own year/month/day,
// and returns it as midnight UTC, the canonical form of dates in this package.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func normalizeDates(in []time.Time) []time.Time {
	out := make([]time.Time, 0, len(in))
	seen := make(map[time.Time]struct{}, len(in))
	for _, t := range in {
		d := DateOf(t)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
