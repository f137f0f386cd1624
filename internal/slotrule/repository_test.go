package slotrule

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/marketplace-backend/internal/db"
)

// testPool connects to TEST_DB_DSN and applies the schema. Tests using it
// are skipped when no database is configured.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

func storedRule(t *testing.T) *SlotRule {
	t.Helper()
	rule := &SlotRule{
		ProviderID:    uuid.NewString(),
		Name:          "Integration",
		Description:   "weekday mornings",
		StartDate:     day(2026, time.October, 1),
		EndDate:       day(2026, time.October, 31),
		DaysOfWeek:    []Weekday{"monday", "wednesday"},
		StartTime:     mustClock(t, "09:00"),
		EndTime:       mustClock(t, "11:30"),
		SlotDuration:  30,
		BreakDuration: 10,
		Capacity:      1,
		IsActive:      true,
		Priority:      2,
		ExcludeDates:  []time.Time{day(2026, time.October, 21), day(2026, time.October, 12)},
		Price:         2500,
	}
	require.NoError(t, rule.Validate())
	return rule
}

func TestPgxRepositoryRoundTrip(t *testing.T) {
	pool := testPool(t)
	repo := NewPgxRepository(pool)
	ctx := context.Background()

	rule := storedRule(t)
	require.NoError(t, repo.Create(ctx, rule))
	require.NotEmpty(t, rule.ID)

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ProviderID, got.ProviderID)
	assert.Equal(t, "09:00", got.StartTime.String())
	assert.Equal(t, "11:30", got.EndTime.String())
	assert.Equal(t, rule.DaysOfWeek, got.DaysOfWeek)
	assert.True(t, got.StartDate.Equal(rule.StartDate))
	assert.True(t, got.EndDate.Equal(rule.EndDate))
	require.Len(t, got.ExcludeDates, 2)
	for i := range rule.ExcludeDates {
		assert.True(t, got.ExcludeDates[i].Equal(rule.ExcludeDates[i]), "exclude date %d", i)
	}
	assert.Equal(t, int64(2500), got.Price)
	assert.Equal(t, 2, got.Priority)

	got.EndTime = LastClock
	got.ExcludeDates = nil
	require.NoError(t, got.Validate())
	require.NoError(t, repo.Update(ctx, got))
	updated, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "23:59", updated.EndTime.String())
	assert.Empty(t, updated.ExcludeDates)

	require.NoError(t, repo.SetActive(ctx, rule.ID, false))
	active, err := repo.ListActiveByProvider(ctx, rule.ProviderID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgxRepositoryDelete(t *testing.T) {
	pool := testPool(t)
	repo := NewPgxRepository(pool)
	ctx := context.Background()

	t.Run("Rule with booked slots", func(t *testing.T) {
		rule := storedRule(t)
		require.NoError(t, repo.Create(ctx, rule))

		from := time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)
		_, err := pool.Exec(ctx,
			`INSERT INTO public.booked_slots (provider_id, rule_id, customer_id, slot_date, start_time, end_time, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'COMPLETED')`,
			rule.ProviderID, rule.ID, uuid.NewString(), day(2026, time.October, 19), from, from.Add(30*time.Minute))
		require.NoError(t, err)

		assert.ErrorIs(t, repo.Delete(ctx, rule.ID), ErrRuleInUse)
		_, err = repo.GetByID(ctx, rule.ID)
		assert.NoError(t, err)
	})

	t.Run("Unused rule", func(t *testing.T) {
		rule := storedRule(t)
		require.NoError(t, repo.Create(ctx, rule))

		require.NoError(t, repo.Delete(ctx, rule.ID))
		_, err := repo.GetByID(ctx, rule.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, rule.ID), ErrNotFound)
	})
}
