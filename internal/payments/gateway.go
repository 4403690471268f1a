package payments

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRequest asks the gateway to collect Amount (whole currency units) for one order.
type PaymentRequest struct {
	Amount      int64
	OrderID     uuid.UUID
	Description string
}

// Session is the gateway-side payment the customer is redirected to.
type Session struct {
	ID              string
	ConfirmationURL string
}

// Gateway creates hosted payment sessions.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*Session, error)
}
