package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

type sessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// Client holds the Stripe credentials for one environment and creates Checkout Sessions
// and verifies webhook payloads against them.
type Client struct {
	environment   string
	signingSecret string
	newSession    sessionFunc
}

// NewClient validates the key against the configured environment and sets the global key
// used by the stripe-go resource packages.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	c, err := newClient(cfg, session.New)
	if err != nil {
		return nil, err
	}
	stripe.Key = strings.TrimSpace(cfg.APIKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", c.environment))
	}
	return c, nil
}

func newClient(cfg config.StripeConfig, fn sessionFunc) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
		newSession:    fn,
	}, nil
}

// NewCheckoutSession creates a hosted payment session. A session whose livemode does not
// match the configured environment is rejected.
func (c *Client) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if c == nil || c.newSession == nil {
		return nil, errors.New("stripe client not initialized")
	}
	sess, err := c.newSession(params)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("stripe returned no checkout session")
	}
	if sess.Livemode != (c.environment == liveEnv) {
		return nil, fmt.Errorf("checkout session %s livemode=%t does not match environment %q", sess.ID, sess.Livemode, c.environment)
	}
	return sess, nil
}

// ConstructEvent checks the Stripe-Signature header and decodes the event.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, errors.New("stripe client not initialized")
	}
	return webhook.ConstructEvent(payload, sigHeader, c.signingSecret)
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
