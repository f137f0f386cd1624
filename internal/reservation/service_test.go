package reservation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type key struct {
	provider       string
	from, to, date time.Time
}

// fakeRepo mimics the unique slot key and expiry of the Postgres table.
type fakeRepo struct {
	mu    sync.Mutex
	clock *clock
	byKey map[key]*Reservation
	seq   int
}

func newFakeRepo(c *clock) *fakeRepo {
	return &fakeRepo{clock: c, byKey: map[key]*Reservation{}}
}

func (f *fakeRepo) live(r *Reservation) bool {
	return r.ExpiresAt.After(f.clock.Now())
}

func (f *fakeRepo) Create(_ context.Context, r *Reservation, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key{r.ProviderID, r.From, r.To, r.Date}
	if existing, ok := f.byKey[k]; ok && f.live(existing) {
		return ConflictFor(r.From, r.To, r.Date)
	}
	f.seq++
	r.ID = fmt.Sprintf("res-%d", f.seq)
	r.CreatedAt = f.clock.Now()
	r.ExpiresAt = r.CreatedAt.Add(ttl)
	cp := *r
	f.byKey[k] = &cp
	return nil
}

func (f *fakeRepo) Exists(_ context.Context, providerID string, from, to, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byKey[key{providerID, from, to, date}]
	return ok && f.live(r), nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byKey {
		if r.ID == id && f.live(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.byKey {
		if r.ID == id {
			delete(f.byKey, k)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeRepo) DeleteExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.byKey {
		if !f.live(r) {
			delete(f.byKey, k)
			n++
		}
	}
	return n, nil
}

type ruleMap map[string]*slotrule.SlotRule

func (m ruleMap) GetByID(_ context.Context, id string) (*slotrule.SlotRule, error) {
	r, ok := m[id]
	if !ok {
		return nil, slotrule.ErrNotFound
	}
	return r, nil
}

type pendingSet map[time.Time]bool

func (p pendingSet) IsPending(_ context.Context, _ string, from, _, _ time.Time) (bool, error) {
	return p[from], nil
}

var (
	testDate  = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	slotFrom  = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)
	slotTo    = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)
	customerA = auth.Principal{UserID: "cust-a", Role: auth.RoleCustomer}
	customerB = auth.Principal{UserID: "cust-b", Role: auth.RoleCustomer}
)

func testRule() *slotrule.SlotRule {
	return &slotrule.SlotRule{
		ID:            "rule-1",
		ProviderID:    "prov-1",
		Name:          "Morning",
		StartDate:     time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC),
		DaysOfWeek:    []slotrule.Weekday{"wednesday"},
		StartTime:     9 * 60,
		EndTime:       11 * 60,
		SlotDuration:  30,
		BreakDuration: 10,
		Capacity:      1,
		IsActive:      true,
	}
}

type fixture struct {
	clock   *clock
	repo    *fakeRepo
	pending pendingSet
	coord   *coordinator
}

func newFixture() *fixture {
	c := &clock{now: time.Date(2026, time.October, 14, 7, 0, 0, 0, time.UTC)}
	repo := newFakeRepo(c)
	pending := pendingSet{}
	coord := NewCoordinator(repo, ruleMap{"rule-1": testRule()}, slotrule.NewEngine(time.UTC), pending, 15*time.Minute).(*coordinator)
	coord.now = c.Now
	return &fixture{clock: c, repo: repo, pending: pending, coord: coord}
}

func holdRequest(customer string) CreateRequest {
	return CreateRequest{
		ProviderID: "prov-1",
		CustomerID: customer,
		RuleID:     "rule-1",
		From:       slotFrom,
		To:         slotTo,
		Date:       testDate,
	}
}

func TestCreateAndCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	reserved, err := f.coord.IsReserved(ctx, "prov-1", slotFrom, slotTo, testDate)
	require.NoError(t, err)
	assert.False(t, reserved)

	res, err := f.coord.Create(ctx, holdRequest("cust-a"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), res.ExpiresAt)

	reserved, err = f.coord.IsReserved(ctx, "prov-1", slotFrom, slotTo, testDate)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestDuplicateCreateConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.coord.Create(ctx, holdRequest("cust-a"))
	require.NoError(t, err)

	_, err = f.coord.Create(ctx, holdRequest("cust-b"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, slotFrom, appErr.Details["from"])
	assert.Equal(t, slotTo, appErr.Details["to"])
	assert.Equal(t, "2026-10-14", appErr.Details["date"])
}

func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	const contenders = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.coord.Create(ctx, holdRequest(fmt.Sprintf("cust-%d", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case assert.ErrorIs(t, err, ErrConflict):
				conflicts++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, conflicts)
}

func TestExpiredHoldDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	first, err := f.coord.Create(ctx, holdRequest("cust-a"))
	require.NoError(t, err)

	f.clock.Advance(15*time.Minute + time.Second)

	reserved, err := f.coord.IsReserved(ctx, "prov-1", slotFrom, slotTo, testDate)
	require.NoError(t, err)
	assert.False(t, reserved)

	_, err = f.coord.Get(ctx, customerA, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	second, err := f.coord.Create(ctx, holdRequest("cust-b"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateValidatesSlot(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(f *fixture, req *CreateRequest)
		wantErr error
	}{
		{"Unknown rule", func(_ *fixture, req *CreateRequest) { req.RuleID = "nope" }, slotrule.ErrNotFound},
		{"Other provider", func(_ *fixture, req *CreateRequest) { req.ProviderID = "prov-2" }, ErrWrongProvider},
		{"Misaligned window", func(_ *fixture, req *CreateRequest) {
			req.From = req.From.Add(10 * time.Minute)
			req.To = req.To.Add(10 * time.Minute)
		}, ErrSlotNotOffered},
		{"Wrong weekday", func(_ *fixture, req *CreateRequest) {
			req.Date = req.Date.AddDate(0, 0, 1)
			req.From = req.From.AddDate(0, 0, 1)
			req.To = req.To.AddDate(0, 0, 1)
		}, ErrSlotNotOffered},
		{"Already started", func(f *fixture, _ *CreateRequest) { f.clock.Advance(2*time.Hour + time.Minute) }, ErrSlotInPast},
		{"Booked slot pending", func(f *fixture, _ *CreateRequest) { f.pending[slotFrom] = true }, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := holdRequest("cust-a")
			tt.mutate(f, &req)
			_, err := f.coord.Create(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("Inactive rule", func(t *testing.T) {
		f := newFixture()
		inactive := testRule()
		inactive.IsActive = false
		f.coord.rules = ruleMap{"rule-1": inactive}
		_, err := f.coord.Create(ctx, holdRequest("cust-a"))
		assert.ErrorIs(t, err, ErrRuleInactive)
	})
}

func TestReleaseAndPromote(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.coord.Create(ctx, holdRequest("cust-a"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.coord.Release(ctx, customerB, res.ID), ErrPermissionDenied)
	_, err = f.coord.Get(ctx, customerB, res.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err := f.coord.Get(ctx, customerA, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)

	require.NoError(t, f.coord.Release(ctx, customerA, res.ID))
	reserved, err := f.coord.IsReserved(ctx, "prov-1", slotFrom, slotTo, testDate)
	require.NoError(t, err)
	assert.False(t, reserved)

	res, err = f.coord.Create(ctx, holdRequest("cust-b"))
	require.NoError(t, err)
	require.NoError(t, f.coord.Promote(ctx, res.ID))
	// A second promote finds nothing and is not an error.
	require.NoError(t, f.coord.Promote(ctx, res.ID))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.coord.Create(ctx, holdRequest("cust-a"))
	require.NoError(t, err)

	n, err := f.coord.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Hour)
	n, err = f.coord.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSweeperSchedule(t *testing.T) {
	f := newFixture()

	_, err := NewSweeper(f.coord, "not a schedule")
	assert.Error(t, err)

	s, err := NewSweeper(f.coord, "@every 1m")
	require.NoError(t, err)

	_, err = f.coord.Create(context.Background(), holdRequest("cust-a"))
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	s.sweep()
	assert.Empty(t, f.repo.byKey)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
