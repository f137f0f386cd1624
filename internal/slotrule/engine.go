package slotrule

import (
	"time"
)

// Engine turns slot rules into concrete time windows. Wall-clock times of a
// rule are interpreted in the engine's location (the provider time zone).
// It holds no state besides the location and is safe for concurrent use.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

// Location returns the time zone rule times are interpreted in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Today returns the calendar date of now in the engine's location.
func (e *Engine) Today(now time.Time) time.Time {
	return DateOf(now.In(e.loc))
}

// At converts a calendar date and a local time of day into an instant.
func (e *Engine) At(date time.Time, c Clock) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, e.loc)
}

// Expand returns the slots of rule on date, in increasing start order.
// A cursor starts at StartTime and advances by SlotDuration+BreakDuration;
// a slot is emitted while its end does not pass EndTime, so a trailing
// partial slot is dropped. The rule is assumed to be validated.
func (e *Engine) Expand(rule *SlotRule, date time.Time) []GeneratedSlot {
	day := DateOf(date)
	if !rule.Accepts(day) || rule.SlotDuration <= 0 {
		return nil
	}

	step := Clock(rule.SlotDuration + rule.BreakDuration)
	length := Clock(rule.SlotDuration)

	var slots []GeneratedSlot
	for cursor := rule.StartTime; cursor+length <= rule.EndTime; cursor += step {
		slots = append(slots, GeneratedSlot{
			RuleID:     rule.ID,
			ProviderID: rule.ProviderID,
			Date:       day,
			From:       e.At(day, cursor),
			To:         e.At(day, cursor+length),
		})
	}
	return slots
}

// FindNextAvailable returns the first slot starting strictly after now.
//
// Rules are visited in the given order. For each rule, days are walked from
// the later of its StartDate and today up to its EndDate; the first slot
// found after now is returned immediately, without comparing against later
// rules. It returns nil when no rule yields such a slot.
func (e *Engine) FindNextAvailable(rules []*SlotRule, now time.Time) *GeneratedSlot {
	today := e.Today(now)

	for _, rule := range rules {
		day := DateOf(rule.StartDate)
		if day.Before(today) {
			day = today
		}
		last := DateOf(rule.EndDate)

		for ; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !rule.Accepts(day) {
				continue
			}
			for _, slot := range e.Expand(rule, day) {
				if slot.From.After(now) {
					return &slot
				}
			}
		}
	}
	return nil
}
