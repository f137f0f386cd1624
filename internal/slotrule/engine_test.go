package slotrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// morningRule runs 09:00-11:00 every day of October 2026.
func morningRule(t *testing.T) *SlotRule {
	r := &SlotRule{
		ID:            "rule-1",
		ProviderID:    "prov-1",
		Name:          "Morning",
		StartDate:     day(2026, time.October, 1),
		EndDate:       day(2026, time.October, 31),
		DaysOfWeek:    []Weekday{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"},
		StartTime:     mustClock(t, "09:00"),
		EndTime:       mustClock(t, "11:00"),
		SlotDuration:  30,
		BreakDuration: 10,
		Capacity:      1,
		IsActive:      true,
	}
	require.NoError(t, r.Validate())
	return r
}

func TestExpandExample(t *testing.T) {
	e := NewEngine(time.UTC)
	slots := e.Expand(morningRule(t), day(2026, time.October, 14))

	require.Len(t, slots, 3)
	want := [][2]string{{"09:00", "09:30"}, {"09:40", "10:10"}, {"10:20", "10:50"}}
	for i, s := range slots {
		assert.Equal(t, want[i][0], s.From.Format("15:04"))
		assert.Equal(t, want[i][1], s.To.Format("15:04"))
		assert.Equal(t, "rule-1", s.RuleID)
		assert.Equal(t, "prov-1", s.ProviderID)
		assert.Equal(t, day(2026, time.October, 14), s.Date)
	}
}

func TestExpandProperties(t *testing.T) {
	e := NewEngine(time.UTC)
	date := day(2026, time.October, 14)

	tests := []struct {
		name          string
		start, end    string
		slot, breakLn int
		wantCount     int
	}{
		{"No break", "08:00", "12:00", 60, 0, 4},
		{"Uneven tail dropped", "08:00", "09:50", 25, 5, 3},
		{"Window smaller than slot", "08:00", "08:20", 30, 0, 0},
		{"Exact fit with break", "10:00", "11:10", 30, 10, 2},
		{"Whole day", "00:00", "23:59", 90, 30, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := morningRule(t)
			r.StartTime = mustClock(t, tt.start)
			r.EndTime = mustClock(t, tt.end)
			r.SlotDuration = tt.slot
			r.BreakDuration = tt.breakLn
			require.NoError(t, r.Validate())

			slots := e.Expand(r, date)
			require.Len(t, slots, tt.wantCount)

			windowEnd := e.At(date, r.EndTime)
			for i, s := range slots {
				assert.Equal(t, time.Duration(tt.slot)*time.Minute, s.To.Sub(s.From), "slot %d length", i)
				assert.False(t, s.To.After(windowEnd), "slot %d ends past the window", i)
				if i > 0 {
					prev := slots[i-1]
					assert.True(t, s.From.After(prev.From), "slot %d not increasing", i)
					assert.GreaterOrEqual(t, s.From.Sub(prev.To), time.Duration(tt.breakLn)*time.Minute, "slot %d gap", i)
				}
			}
		})
	}
}

func TestExpandFilters(t *testing.T) {
	e := NewEngine(time.UTC)

	t.Run("Excluded date", func(t *testing.T) {
		r := morningRule(t)
		r.ExcludeDates = []time.Time{time.Date(2026, time.October, 14, 18, 30, 0, 0, time.UTC)}
		require.NoError(t, r.Validate())

		assert.Empty(t, e.Expand(r, day(2026, time.October, 14)))
		assert.Len(t, e.Expand(r, day(2026, time.October, 15)), 3)
	})

	t.Run("Weekday not listed", func(t *testing.T) {
		r := morningRule(t)
		r.DaysOfWeek = []Weekday{"monday"}
		require.NoError(t, r.Validate())

		// 2026-10-14 is a Wednesday, 2026-10-12 a Monday.
		assert.Empty(t, e.Expand(r, day(2026, time.October, 14)))
		assert.Len(t, e.Expand(r, day(2026, time.October, 12)), 3)
	})

	t.Run("Outside date range", func(t *testing.T) {
		r := morningRule(t)
		assert.Empty(t, e.Expand(r, day(2026, time.September, 30)))
		assert.Empty(t, e.Expand(r, day(2026, time.November, 1)))
		assert.Len(t, e.Expand(r, day(2026, time.October, 31)), 3)
	})
}

func TestExpandUsesEngineLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	e := NewEngine(loc)
	slots := e.Expand(morningRule(t), day(2026, time.October, 14))
	require.NotEmpty(t, slots)

	// 09:00 IST is 03:30 UTC.
	assert.Equal(t, time.Date(2026, time.October, 14, 3, 30, 0, 0, time.UTC), slots[0].From.UTC())
	assert.Equal(t, "09:00", slots[0].From.In(loc).Format("15:04"))
}

func TestFindNextAvailable(t *testing.T) {
	e := NewEngine(time.UTC)

	t.Run("Later slot today", func(t *testing.T) {
		now := time.Date(2026, time.October, 14, 9, 15, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{morningRule(t)}, now)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, time.October, 14, 9, 40, 0, 0, time.UTC), got.From)
	})

	t.Run("Slot starting exactly now is skipped", func(t *testing.T) {
		now := time.Date(2026, time.October, 14, 9, 40, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{morningRule(t)}, now)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, time.October, 14, 10, 20, 0, 0, time.UTC), got.From)
	})

	t.Run("Rolls over to tomorrow", func(t *testing.T) {
		now := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{morningRule(t)}, now)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC), got.From)
		assert.Equal(t, day(2026, time.October, 15), got.Date)
	})

	t.Run("Rule starting in the future", func(t *testing.T) {
		r := morningRule(t)
		r.StartDate = day(2026, time.October, 20)
		now := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{r}, now)
		require.NotNil(t, got)
		assert.Equal(t, day(2026, time.October, 20), got.Date)
	})

	t.Run("Skips excluded days", func(t *testing.T) {
		r := morningRule(t)
		r.ExcludeDates = []time.Time{day(2026, time.October, 15), day(2026, time.October, 16)}
		require.NoError(t, r.Validate())
		now := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{r}, now)
		require.NotNil(t, got)
		assert.Equal(t, day(2026, time.October, 17), got.Date)
	})

	t.Run("Expired rule yields nil", func(t *testing.T) {
		now := time.Date(2026, time.November, 2, 8, 0, 0, 0, time.UTC)
		assert.Nil(t, e.FindNextAvailable([]*SlotRule{morningRule(t)}, now))
	})

	t.Run("After the last slot of the last day", func(t *testing.T) {
		now := time.Date(2026, time.October, 31, 10, 30, 0, 0, time.UTC)
		assert.Nil(t, e.FindNextAvailable([]*SlotRule{morningRule(t)}, now))
	})

	t.Run("No rules", func(t *testing.T) {
		assert.Nil(t, e.FindNextAvailable(nil, time.Now()))
	})

	t.Run("First matching rule wins", func(t *testing.T) {
		late := morningRule(t)
		late.ID = "rule-late"
		late.StartDate = day(2026, time.October, 25)

		early := morningRule(t)
		early.ID = "rule-early"

		now := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{late, early}, now)
		require.NotNil(t, got)
		assert.Equal(t, "rule-late", got.RuleID)
	})

	t.Run("Falls through to the next rule", func(t *testing.T) {
		over := morningRule(t)
		over.ID = "rule-over"
		over.EndDate = day(2026, time.October, 10)
		require.NoError(t, over.Validate())

		open := morningRule(t)
		open.ID = "rule-open"

		now := time.Date(2026, time.October, 14, 8, 0, 0, 0, time.UTC)
		got := e.FindNextAvailable([]*SlotRule{over, open}, now)
		require.NotNil(t, got)
		assert.Equal(t, "rule-open", got.RuleID)
	})
}

func TestFindNextAvailableTodayInLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	e := NewEngine(loc)

	// 2026-10-13 20:00 UTC is already 2026-10-14 01:30 in Kolkata.
	now := time.Date(2026, time.October, 13, 20, 0, 0, 0, time.UTC)
	got := e.FindNextAvailable([]*SlotRule{morningRule(t)}, now)
	require.NotNil(t, got)
	assert.Equal(t, day(2026, time.October, 14), got.Date)
	assert.Equal(t, "09:00", got.From.In(loc).Format("15:04"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *SlotRule)
		wantErr error
	}{
		{"Valid", func(r *SlotRule) {}, nil},
		{"Missing name", func(r *SlotRule) { r.Name = " " }, ErrNameRequired},
		{"Missing provider", func(r *SlotRule) { r.ProviderID = "" }, ErrProviderRequired},
		{"Dates reversed", func(r *SlotRule) { r.StartDate = day(2026, time.November, 1) }, ErrInvalidDateRange},
		{"Times reversed", func(r *SlotRule) { r.StartTime, r.EndTime = r.EndTime, r.StartTime }, ErrInvalidTimeWindow},
		{"Empty window", func(r *SlotRule) { r.EndTime = r.StartTime }, ErrInvalidTimeWindow},
		{"Ends at midnight", func(r *SlotRule) { r.EndTime = 24 * 60 }, ErrInvalidTimeWindow},
		{"Ends at last minute", func(r *SlotRule) { r.EndTime = LastClock }, nil},
		{"Zero slot", func(r *SlotRule) { r.SlotDuration = 0 }, ErrInvalidSlotDuration},
		{"Negative break", func(r *SlotRule) { r.BreakDuration = -1 }, ErrInvalidBreak},
		{"Zero capacity", func(r *SlotRule) { r.Capacity = 0 }, ErrInvalidCapacity},
		{"Negative price", func(r *SlotRule) { r.Price = -5 }, ErrInvalidPrice},
		{"No days", func(r *SlotRule) { r.DaysOfWeek = nil }, ErrDaysRequired},
		{"Bad day", func(r *SlotRule) { r.DaysOfWeek = []Weekday{"funday"} }, ErrInvalidWeekday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := morningRule(t)
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	r := morningRule(t)
	r.DaysOfWeek = []Weekday{"Friday", "monday", "FRIDAY"}
	r.ExcludeDates = []time.Time{
		time.Date(2026, time.October, 20, 15, 0, 0, 0, time.UTC),
		day(2026, time.October, 5),
		day(2026, time.October, 20),
	}
	require.NoError(t, r.Validate())

	assert.Equal(t, []Weekday{"monday", "friday"}, r.DaysOfWeek)
	assert.Equal(t, []time.Time{day(2026, time.October, 5), day(2026, time.October, 20)}, r.ExcludeDates)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, Clock(9*60+5), c)
	assert.Equal(t, "09:05", c.String())

	c, err = ParseClock("23:30:00")
	require.NoError(t, err)
	assert.Equal(t, "23:30", c.String())

	_, err = ParseClock("9am")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}
