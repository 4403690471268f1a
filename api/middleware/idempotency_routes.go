package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
)

// idempotentRoute is a POST route that requires an Idempotency-Key. template uses chi
// syntax; a {param} segment matches any single non-empty path segment.
type idempotentRoute struct {
	template string
	ttl      time.Duration
}

var idempotentRoutes = []idempotentRoute{
	{template: "/api/v1/checkout", ttl: criticalIdempotencyTTL},
	{template: "/api/v1/cart/repeat/{orderId}", ttl: defaultIdempotencyTTL},
	{template: "/api/v1/admin/orders", ttl: defaultIdempotencyTTL},
	{template: "/api/v1/admin/orders/{orderId}/status", ttl: defaultIdempotencyTTL},
	{template: "/api/v1/admin/inventory/decrement", ttl: defaultIdempotencyTTL},
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if method != http.MethodPost || pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if templateMatches(route.template, pattern) {
			return route.ttl, true
		}
	}
	return 0, false
}

func templateMatches(template, path string) bool {
	want := strings.Split(strings.Trim(template, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

// routePattern prefers the chi pattern. Group middleware only sees a partial pattern
// ("/api/v1/*"), so the raw path is used then.
func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}
