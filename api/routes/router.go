package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-core/api/controllers"
	"github.com/angelmondragon/storefront-core/api/middleware"
	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/internal/cart"
	"github.com/angelmondragon/storefront-core/internal/checkout"
	"github.com/angelmondragon/storefront-core/internal/coupons"
	"github.com/angelmondragon/storefront-core/internal/delivery"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/redis"
)

// RedisStore is the Redis surface the HTTP layer needs.
type RedisStore interface {
	redis.Pinger
	redis.IdempotencyStore
	redis.RateLimiter
}

// Services groups the domain services the routes dispatch to.
type Services struct {
	Cart      cart.Service
	Addresses address.Service
	Coupons   coupons.Service
	Pricing   *pricing.Engine
	Checkout  checkout.Service
	Orders    orders.Service
	Delivery  delivery.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	couponPolicy := middleware.NewRateLimitPolicy("coupon_apply", cfg.Coupons.ApplyWindow, cfg.Coupons.ApplyLimit)
	idempotent := middleware.Idempotency(redisStore, cfg.Checkout.ReplayTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisStore,
		}, logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, enums.ActorCustomer, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svc.Cart, logg))
			r.Get("/summary", controllers.CartSummary(svc.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svc.Cart, logg))
		})

		r.Get("/addresses", controllers.AddressList(svc.Addresses, logg))

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.CouponList(svc.Coupons, logg))
			r.Get("/applied", controllers.CouponApplied(svc.Coupons, logg))
			r.Delete("/applied", controllers.CouponRemove(svc.Coupons, logg))
			r.With(middleware.RateLimit(couponPolicy, redisStore, logg)).
				Post("/apply", controllers.CouponApply(svc.Coupons, svc.Cart, svc.Pricing, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/review", controllers.CheckoutReview(svc.Checkout, logg))
			r.With(idempotent).Post("/", controllers.CheckoutCommit(svc.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svc.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svc.Orders, logg))
			r.Get("/{orderId}/track", controllers.OrderTrack(svc.Orders, logg))
			r.Get("/{orderId}/timeline", controllers.OrderTimeline(svc.Orders, logg))
			r.Post("/{orderId}/verify-payment", controllers.CheckoutVerifyPayment(svc.Checkout, logg))
			r.With(idempotent).Post("/{orderId}/cancel", controllers.OrderCancel(svc.Orders, logg))
			r.Post("/{orderId}/return", controllers.OrderReturn(svc.Orders, logg))
		})
	})

	r.Route("/api/agent/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, enums.ActorAgent, logg))
		r.Use(middleware.RequireRole(enums.ActorAgent, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AgentOrderList(svc.Delivery, logg))
			r.Get("/{orderId}", controllers.AgentOrderDetail(svc.Delivery, logg))
			r.Post("/{orderId}/status", controllers.AgentUpdateStatus(svc.Delivery, logg))
			r.Post("/{orderId}/locations", controllers.AgentAddLocation(svc.Delivery, logg))
			r.Post("/{orderId}/proof", controllers.AgentUploadProof(svc.Delivery, logg))
		})
	})

	return r
}
