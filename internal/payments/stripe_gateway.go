package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	pkgstripe "github.com/angelmondragon/homecafe-backend/pkg/stripe"
)

// MetadataOrderID is the checkout session metadata key holding our order id.
const MetadataOrderID = "order_id"

// zero-decimal currencies are charged in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
}

type sessionCreator interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeGateway creates Stripe Checkout Sessions in payment mode.
type StripeGateway struct {
	sessions   sessionCreator
	currency   string
	successURL string
	cancelURL  string
}

func NewStripeGateway(client *pkgstripe.Client, cfg config.CheckoutConfig) (*StripeGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return newStripeGateway(client, cfg)
}

func newStripeGateway(sessions sessionCreator, cfg config.CheckoutConfig) (*StripeGateway, error) {
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		return nil, errors.New("checkout currency required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("checkout success and cancel urls required")
	}
	return &StripeGateway{
		sessions:   sessions,
		currency:   currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}, nil
}

func (g *StripeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*Session, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", req.Amount)
	}
	orderID := req.OrderID.String()
	description := req.Description
	if description == "" {
		description = "Order " + orderID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withOrderID(g.successURL, orderID)),
		CancelURL:         stripe.String(withOrderID(g.cancelURL, orderID)),
		ClientReferenceID: stripe.String(orderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(g.minorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(description),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, orderID)
	// one session per order even if the request is replayed
	params.SetIdempotencyKey("checkout-session-" + orderID)

	sess, err := g.sessions.NewCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, ConfirmationURL: sess.URL}, nil
}

func (g *StripeGateway) minorUnits(amount int64) int64 {
	if zeroDecimalCurrencies[g.currency] {
		return amount
	}
	return decimal.NewFromInt(amount).Shift(2).IntPart()
}

func withOrderID(rawURL, orderID string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "order_id=" + orderID
}
