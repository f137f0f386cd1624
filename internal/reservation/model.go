package reservation

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
)

var (
	ErrNotFound         = apperror.NotFound("reservation not found or expired")
	ErrConflict         = apperror.Conflict("slot is already reserved")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrRuleInactive     = apperror.Validation("slot rule is not active")
	ErrWrongProvider    = apperror.Validation("slot rule belongs to another provider")
	ErrSlotNotOffered   = apperror.Validation("slot is not offered by this rule on that date")
	ErrSlotInPast       = apperror.Validation("slot has already started")
)

// Reservation is a short-lived hold on one slot of a provider. A hold is
// live until ExpiresAt; afterwards it no longer blocks the slot.
type Reservation struct {
	ID         string
	ProviderID string
	CustomerID string
	RuleID     string
	Date       time.Time // calendar date
	From       time.Time
	To         time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// SlotDetails describes the contested slot in conflict responses.
func SlotDetails(from, to, date time.Time) map[string]any {
	return map[string]any{
		"from": from,
		"to":   to,
		"date": date.Format(request.DateLayout),
	}
}

// ConflictFor returns ErrConflict annotated with the contested slot.
func ConflictFor(from, to, date time.Time) error {
	return ErrConflict.WithDetails(SlotDetails(from, to, date))
}
