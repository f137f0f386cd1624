package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Gateway is the external payment processor. Payers complete the order with
// the processor directly and hand back a payment id plus a signature.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (string, error)
	Verify(orderID, paymentID, signature string) error
}

// HMACGateway signs "orderID|paymentID" with a shared secret, the scheme used
// by hosted checkout processors.
type HMACGateway struct {
	secret []byte
}

func NewHMACGateway(secret string) *HMACGateway {
	return &HMACGateway{secret: []byte(secret)}
}

func (g *HMACGateway) CreateOrder(_ context.Context, amount int64, _ string) (string, error) {
	if amount < 0 {
		return "", ErrInvalidAmount
	}
	return "order_" + uuid.NewString(), nil
}

// Sign returns the hex signature the processor attaches to a payment.
func (g *HMACGateway) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *HMACGateway) Verify(orderID, paymentID, signature string) error {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(g.Sign(orderID, paymentID))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}
