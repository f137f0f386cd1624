package http

import (
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
)

type ReservationResponse struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	CustomerID string    `json:"customer_id"`
	RuleID     string    `json:"rule_id"`
	Date       string    `json:"date"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		CustomerID: r.CustomerID,
		RuleID:     r.RuleID,
		Date:       r.Date.Format(request.DateLayout),
		From:       r.From,
		To:         r.To,
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

// SlotQuery identifies one slot of a provider. Instants are RFC 3339.
type SlotQuery struct {
	ProviderID string    `form:"provider_id" binding:"required,uuid"`
	From       time.Time `form:"from" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	To         time.Time `form:"to" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	Date       string    `form:"date" binding:"required"`
}

type CheckResponse struct {
	Reserved bool `json:"reserved"`
}

type CreateReservationBody struct {
	ProviderID string    `json:"provider_id" binding:"required,uuid"`
	RuleID     string    `json:"rule_id" binding:"required,uuid"`
	From       time.Time `json:"from" binding:"required"`
	To         time.Time `json:"to" binding:"required"`
	Date       string    `json:"date" binding:"required"`
}
