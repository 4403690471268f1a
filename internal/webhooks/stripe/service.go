package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/homecafe-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/homecafe-backend/pkg/errors"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, result payments.PaymentResult) (payments.Outcome, error)
}

type ServiceParams struct {
	Reconciler reconciler
	Logger     *logger.Logger
}

// Service turns Checkout Session events into payment results.
type Service struct {
	reconciler reconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{reconciler: params.Reconciler, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	var succeeded bool
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		succeeded = true
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		succeeded = false
	default:
		s.logg.Info(ctx, "stripe event ignored")
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	// completed with a delayed method stays unpaid until the async event arrives
	if event.Type == stripe.EventTypeCheckoutSessionCompleted &&
		session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		session.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", string(session.PaymentStatus)), "checkout session completed without payment, waiting")
		return nil
	}

	result := payments.PaymentResult{
		GatewayRef: session.ID,
		OrderID:    orderReference(&session),
		Succeeded:  succeeded,
		Status:     string(session.PaymentStatus),
	}
	if !succeeded {
		result.Status = string(event.Type)
	}
	outcome, err := s.reconciler.Reconcile(ctx, result)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "outcome", string(outcome)), "stripe checkout event reconciled")
	return nil
}

func orderReference(session *stripe.CheckoutSession) *uuid.UUID {
	raw := session.ClientReferenceID
	if raw == "" && session.Metadata != nil {
		raw = session.Metadata[payments.MetadataOrderID]
	}
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
