package bookedslot

import (
	"net/http"
	"strings"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.NotFound("booked slot not found")
	ErrAlreadyPending   = apperror.Conflict("slot already pending")
	ErrTransitionFailed = apperror.Internal("slot state could not be updated")
	ErrInvalidStatus    = apperror.Validation("status must be one of RELEASED, COMPLETED, CANCELLED")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
)

// Status of a booked slot. AVAILABLE is never stored: a slot is available
// while it has no PENDING row. Every other state is kept as history.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusPending   Status = "PENDING"
	StatusReleased  Status = "RELEASED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ParseTarget accepts the statuses a PENDING slot may move to.
func ParseTarget(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusReleased, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Terminal reports whether no transition leaves st.
func (st Status) Terminal() bool {
	return st == StatusReleased || st == StatusCompleted || st == StatusCancelled
}

// Key identifies the slot a booking occupies. Transitions match on it.
type Key struct {
	RuleID string
	Date   time.Time
	From   time.Time
	To     time.Time
}

type BookedSlot struct {
	ID         string
	ProviderID string
	RuleID     string
	CustomerID string
	PaymentRef string
	Date       time.Time // calendar date
	From       time.Time
	To         time.Time
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (b *BookedSlot) Key() Key {
	return Key{RuleID: b.RuleID, Date: b.Date, From: b.From, To: b.To}
}

// Filter defines parameters for listing booked slots.
type Filter struct {
	ProviderID string
	CustomerID string
	Status     Status
	Date       *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
