package pubsub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		name, project, kind, input, want string
	}{
		{"short topic", "cafe", "topics", "orders", "projects/cafe/topics/orders"},
		{"full topic passes through", "cafe", "topics", "projects/other/topics/x", "projects/other/topics/x"},
		{"subscription", "cafe", "subscriptions", " worker ", "projects/cafe/subscriptions/worker"},
		{"empty name", "cafe", "topics", "", ""},
		{"missing project", "", "topics", "orders", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resourceName(tc.project, tc.kind, tc.input); got != tc.want {
				t.Fatalf("resourceName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, Options{}, nil)
	if err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	if c.NotificationPublisher() != nil || c.NotificationSubscription() != nil {
		t.Fatal("nil client should return nil handles")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}

func TestCheckExistsMapsLookupErrors(t *testing.T) {
	ok := func(string) error { return nil }
	if err := checkExists(kindTopic, "orders", "projects/cafe/topics/orders", ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := checkExists(kindTopic, "", "", ok); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}

	missing := func(string) error { return status.Error(codes.NotFound, "gone") }
	if err := checkExists(kindSubscription, "w", "projects/cafe/subscriptions/w", missing); err == nil || !strings.Contains(err.Error(), "subscription") || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected does not exist error, got %v", err)
	}

	boom := errors.New("unavailable")
	if err := checkExists(kindTopic, "orders", "projects/cafe/topics/orders", func(string) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped lookup error, got %v", err)
	}
}
