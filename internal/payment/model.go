package payment

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/apperror"
)

var (
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission denied")
	ErrCustomerOnly     = apperror.New(http.StatusForbidden, "only customers can pay for a reservation")
	ErrOrderNotFound    = apperror.NotFound("payment order not found or expired")
	ErrOrderMismatch    = apperror.Validation("payment order does not belong to this reservation")
	ErrInvalidSignature = apperror.Validation("invalid payment signature")
	ErrInvalidAmount    = apperror.Validation("amount must not be negative")
	ErrOrderOpen        = apperror.Conflict("a payment order is already open for this reservation")
)

// Order is a gateway order opened for one reservation. It lives as long as
// the payer's lock.
type Order struct {
	ID            string
	ReservationID string
	CustomerID    string
	ProviderID    string
	Amount        int64
	ExpiresAt     time.Time
}

// Confirmation is the outcome of a verified payment.
type Confirmation struct {
	SlotID        string
	ReservationID string
	OrderID       string
	PaymentID     string
	Amount        int64
	From          time.Time
	To            time.Time
	ConfirmedAt   time.Time
}
