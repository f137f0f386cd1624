package bookedslot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
)

// fakeRepo keeps every row, like the table, and enforces one PENDING row per key.
type fakeRepo struct {
	mu   sync.Mutex
	rows []*BookedSlot
	seq  int
}

func (f *fakeRepo) pendingIndex(key Key) int {
	for i, r := range f.rows {
		if r.Key() == key && r.Status == StatusPending {
			return i
		}
	}
	return -1
}

func (f *fakeRepo) Reserve(_ context.Context, slot *BookedSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingIndex(slot.Key()) >= 0 {
		return ErrAlreadyPending
	}
	f.seq++
	slot.ID = fmt.Sprintf("slot-%d", f.seq)
	slot.Status = StatusPending
	cp := *slot
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeRepo) Transition(_ context.Context, key Key, status Status) (*BookedSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.pendingIndex(key)
	if i < 0 {
		return nil, ErrTransitionFailed
	}
	f.rows[i].Status = status
	cp := *f.rows[i]
	return &cp, nil
}

func (f *fakeRepo) IsPending(_ context.Context, providerID string, from, to, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ProviderID == providerID && r.From.Equal(from) && r.To.Equal(to) && r.Date.Equal(date) && r.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*BookedSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, filter Filter) ([]*BookedSlot, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*BookedSlot
	for _, r := range f.rows {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

var (
	slotDate = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	slotFrom = time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)
	slotTo   = time.Date(2026, time.October, 14, 9, 30, 0, 0, time.UTC)
	slotKey  = Key{RuleID: "rule-1", Date: slotDate, From: slotFrom, To: slotTo}
)

func reserveRequest() ReserveRequest {
	return ReserveRequest{
		ProviderID: "prov-1",
		RuleID:     "rule-1",
		CustomerID: "cust-1",
		PaymentRef: "order-1",
		Date:       slotDate,
		From:       slotFrom,
		To:         slotTo,
	}
}

func TestReserve(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	pub := &recordingPublisher{}
	svc := NewService(repo, pub)

	slot, err := svc.Reserve(ctx, reserveRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, slot.Status)
	assert.Equal(t, []string{"slot.pending"}, pub.keys)

	pending, err := svc.IsPending(ctx, "prov-1", slotFrom, slotTo, slotDate)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = svc.Reserve(ctx, reserveRequest())
	assert.ErrorIs(t, err, ErrAlreadyPending)
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		apply func(Service, context.Context, Key) (*BookedSlot, error)
		want  Status
	}{
		{"Release", Service.Release, StatusReleased},
		{"Complete", Service.Complete, StatusCompleted},
		{"Cancel", Service.Cancel, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			pub := &recordingPublisher{}
			svc := NewService(repo, pub)

			_, err := svc.Reserve(ctx, reserveRequest())
			require.NoError(t, err)

			slot, err := tt.apply(svc, ctx, slotKey)
			require.NoError(t, err)
			assert.Equal(t, tt.want, slot.Status)
			assert.True(t, slot.Status.Terminal())

			// Once terminal, every transition fails and nothing changes.
			for _, again := range tests {
				_, err := again.apply(svc, ctx, slotKey)
				assert.ErrorIs(t, err, ErrTransitionFailed)
			}
			stored, err := repo.GetByID(ctx, slot.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
			assert.Len(t, pub.keys, 2)

			// The slot is available again and can be reserved anew.
			pending, err := svc.IsPending(ctx, "prov-1", slotFrom, slotTo, slotDate)
			require.NoError(t, err)
			assert.False(t, pending)
			_, err = svc.Reserve(ctx, reserveRequest())
			assert.NoError(t, err)
		})
	}
}

func TestTransitionWithoutPendingSlot(t *testing.T) {
	svc := NewService(&fakeRepo{}, &recordingPublisher{})
	_, err := svc.Complete(context.Background(), slotKey)
	assert.ErrorIs(t, err, ErrTransitionFailed)
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeRepo{}, &recordingPublisher{})
	_, err := svc.Reserve(ctx, reserveRequest())
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, op := range []func(context.Context, Key) (*BookedSlot, error){svc.Release, svc.Complete, svc.Cancel, svc.Complete} {
		op := op
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := op(ctx, slotKey); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSetStatusPermissions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   auth.Principal
		to      Status
		wantErr error
	}{
		{"Provider completes", auth.Principal{UserID: "prov-1", Role: auth.RoleProvider}, StatusCompleted, nil},
		{"Other provider", auth.Principal{UserID: "prov-2", Role: auth.RoleProvider}, StatusCompleted, ErrPermissionDenied},
		{"Customer cancels own", auth.Principal{UserID: "cust-1", Role: auth.RoleCustomer}, StatusCancelled, nil},
		{"Customer cannot complete", auth.Principal{UserID: "cust-1", Role: auth.RoleCustomer}, StatusCompleted, ErrPermissionDenied},
		{"Other customer", auth.Principal{UserID: "cust-2", Role: auth.RoleCustomer}, StatusCancelled, ErrPermissionDenied},
		{"Admin releases", auth.Principal{UserID: "root", Role: auth.RoleAdmin}, StatusReleased, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeRepo{}, &recordingPublisher{})
			slot, err := svc.Reserve(ctx, reserveRequest())
			require.NoError(t, err)

			got, err := svc.SetStatus(ctx, tt.actor, slot.ID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
		})
	}
}

func TestParseTarget(t *testing.T) {
	st, err := ParseTarget("completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)

	for _, bad := range []string{"PENDING", "AVAILABLE", "", "done"} {
		_, err := ParseTarget(bad)
		assert.ErrorIs(t, err, ErrInvalidStatus, bad)
	}
}
