package http

import (
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/bookedslot"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
)

type BookedSlotResponse struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	RuleID     string    `json:"rule_id"`
	CustomerID string    `json:"customer_id"`
	PaymentRef string    `json:"payment_ref"`
	Date       string    `json:"date"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewBookedSlotResponse(s *bookedslot.BookedSlot) BookedSlotResponse {
	return BookedSlotResponse{
		ID:         s.ID,
		ProviderID: s.ProviderID,
		RuleID:     s.RuleID,
		CustomerID: s.CustomerID,
		PaymentRef: s.PaymentRef,
		Date:       s.Date.Format(request.DateLayout),
		From:       s.From,
		To:         s.To,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type ListSlotsRequest struct {
	request.ListParams
	ProviderID string `form:"provider_id" binding:"omitempty,uuid"`
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING RELEASED COMPLETED CANCELLED"`
	Date       string `form:"date"`
	SortBy     string `form:"sort_by" binding:"omitempty,oneof=start_time created_at updated_at"`
}

type SetStatusBody struct {
	SlotID string `json:"slot_id" binding:"required,uuid"`
	Status string `json:"status" binding:"required"`
}
