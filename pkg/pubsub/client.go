package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// Client wraps the Pub/Sub v2 client around the notification topic and subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// Options picks which configured resources must exist before the client is returned.
type Options struct {
	RequireTopic        bool
	RequireSubscription bool
}

var errProjectIDRequired = errors.New("gcp project id is required")

// NewClient dials Pub/Sub and fails fast when a required resource is missing. The api
// publishes, so it requires the topic; the worker requires the subscription.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, opts Options, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	var dialOpts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		dialOpts = append(dialOpts, option.WithCredentialsJSON([]byte(creds)))
	}
	psClient, err := pubsub.NewClient(ctx, projectID, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg}

	var checks []error
	if opts.RequireTopic {
		checks = append(checks, c.checkTopic(ctx))
	}
	if opts.RequireSubscription {
		checks = append(checks, c.checkSubscription(ctx))
	}
	if err := errors.Join(checks...); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"project":      projectID,
			"topic":        cfg.NotificationTopic,
			"subscription": cfg.NotificationSubscription,
		})
		logg.Info(ctx, "pubsub.connected")
	}
	return c, nil
}

func (c *Client) checkTopic(ctx context.Context) error {
	name := c.cfg.NotificationTopic
	return checkExists(kindTopic, name, resourceName(c.projectID, kindTopic, name), func(full string) error {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		return err
	})
}

func (c *Client) checkSubscription(ctx context.Context) error {
	name := c.cfg.NotificationSubscription
	return checkExists(kindSubscription, name, resourceName(c.projectID, kindSubscription, name), func(full string) error {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		return err
	})
}

// checkExists runs lookup against the full resource name and turns gRPC NotFound into a
// readable startup error.
func checkExists(kind, name, full string, lookup func(string) error) error {
	if full == "" {
		return fmt.Errorf("pubsub %s %q not configured", strings.TrimSuffix(kind, "s"), name)
	}
	err := lookup(full)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(kind, "s"), full)
	default:
		return fmt.Errorf("checking pubsub %s %q: %w", strings.TrimSuffix(kind, "s"), full, err)
	}
}

// NotificationPublisher returns the publisher for queued customer notifications, or nil
// when no topic is configured.
func (c *Client) NotificationPublisher() *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindTopic, c.cfg.NotificationTopic)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

// NotificationSubscription returns the subscriber the notification worker drains, capped
// at cfg.MaxOutstanding in-flight messages.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.projectID, kindSubscription, c.cfg.NotificationSubscription)
	if full == "" {
		return nil
	}
	sub := c.client.Subscriber(full)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return sub
}

// Ping checks the notification topic; it backs the api readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.checkTopic(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short id into projects/<p>/<kind>/<id>; full names pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/"):
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + kind + "/" + n
}
