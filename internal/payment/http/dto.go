package http

import (
	"time"

	"github.com/nekogravitycat/marketplace-backend/internal/payment"
)

type InitiateBody struct {
	ReservationID string `json:"reservation_id" binding:"required,uuid"`
}

type OrderResponse struct {
	OrderID       string    `json:"order_id"`
	ReservationID string    `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func NewOrderResponse(o *payment.Order) OrderResponse {
	return OrderResponse{
		OrderID:       o.ID,
		ReservationID: o.ReservationID,
		Amount:        o.Amount,
		ExpiresAt:     o.ExpiresAt,
	}
}

type ConfirmBody struct {
	ReservationID string `json:"reservation_id" binding:"required,uuid"`
	OrderID       string `json:"order_id" binding:"required"`
	PaymentID     string `json:"payment_id" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

func (b ConfirmBody) ToRequest() payment.ConfirmRequest {
	return payment.ConfirmRequest{
		ReservationID: b.ReservationID,
		OrderID:       b.OrderID,
		PaymentID:     b.PaymentID,
		Signature:     b.Signature,
	}
}

type ConfirmationResponse struct {
	SlotID        string    `json:"slot_id"`
	ReservationID string    `json:"reservation_id"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	Amount        int64     `json:"amount"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func NewConfirmationResponse(c *payment.Confirmation) ConfirmationResponse {
	return ConfirmationResponse{
		SlotID:        c.SlotID,
		ReservationID: c.ReservationID,
		OrderID:       c.OrderID,
		PaymentID:     c.PaymentID,
		Amount:        c.Amount,
		From:          c.From,
		To:            c.To,
		ConfirmedAt:   c.ConfirmedAt,
	}
}
