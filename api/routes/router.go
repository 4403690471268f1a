package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/homecafe-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/homecafe-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/homecafe-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/homecafe-backend/api/controllers/webhooks"
	"github.com/angelmondragon/homecafe-backend/api/middleware"
	"github.com/angelmondragon/homecafe-backend/pkg/config"
	"github.com/angelmondragon/homecafe-backend/pkg/enums"
	"github.com/angelmondragon/homecafe-backend/pkg/logger"
	"github.com/angelmondragon/homecafe-backend/pkg/metrics"
	"github.com/angelmondragon/homecafe-backend/pkg/redis"
)

// Dependencies carries everything the router serves. Leave a field nil rather than storing
// a typed nil pointer in it; handlers answer 500 for a missing service.
type Dependencies struct {
	DB                 controllers.Pinger
	Redis              *redis.Client
	Products           controllers.ProductStore
	Cart               cartcontrollers.Service
	Checkout           controllers.CheckoutService
	Orders             ordercontrollers.Service
	StripeSigner       webhookcontrollers.StripeSigner
	StripeWebhooks     webhookcontrollers.StripeWebhookService
	StripeWebhookGuard webhookcontrollers.StripeWebhookGuard
	HTTPMetrics        *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg, deps.HTTPMetrics),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins, cfg.Cart.TokenHeader),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	var (
		idemStore redis.IdempotencyStore
		limiter   middleware.RateLimitStore
	)
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
		idemStore = deps.Redis
		limiter = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", promhttp.Handler())

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
		cfg.RateLimit.CheckoutEmailLimit,
	)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeSigner, deps.StripeWebhookGuard, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, cfg.Cart, logg))

			r.Get("/products/{productId}", controllers.ProductDetail(deps.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(deps.Cart, cfg.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, cfg.Cart, logg))
				r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(deps.Cart, cfg.Cart, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(deps.Cart, cfg.Cart, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAuth(logg))
					r.Post("/merge", cartcontrollers.CartMerge(deps.Cart, cfg.Cart, logg))
					r.Post("/repeat/{orderId}", cartcontrollers.CartRepeatOrder(deps.Cart, cfg.Cart, logg))
				})
			})

			r.With(middleware.RateLimit(checkoutPolicy, limiter, logg)).
				Post("/checkout", controllers.Checkout(deps.Checkout, cfg.Cart, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Use(middleware.RequireAuth(logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", ordercontrollers.AdminList(deps.Orders, logg))
					r.Post("/", ordercontrollers.AdminCreate(deps.Orders, logg))
					r.Get("/{orderId}", ordercontrollers.AdminDetail(deps.Orders, logg))
					r.Patch("/{orderId}", ordercontrollers.AdminUpdate(deps.Orders, logg))
					r.Post("/{orderId}/status", ordercontrollers.AdminChangeStatus(deps.Orders, logg))
				})
				r.Post("/inventory/decrement", ordercontrollers.AdminDecrementStock(deps.Orders, logg))
				r.Put("/products/{productId}/stock", controllers.AdminSetStock(deps.Products, logg))
			})
		})
	})

	return r
}
