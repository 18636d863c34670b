package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-core/api/routes"
	"github.com/angelmondragon/storefront-core/internal/address"
	"github.com/angelmondragon/storefront-core/internal/cart"
	"github.com/angelmondragon/storefront-core/internal/checkout"
	"github.com/angelmondragon/storefront-core/internal/coupons"
	"github.com/angelmondragon/storefront-core/internal/delivery"
	"github.com/angelmondragon/storefront-core/internal/orders"
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/commerce"
	"github.com/angelmondragon/storefront-core/pkg/config"
	"github.com/angelmondragon/storefront-core/pkg/db"
	"github.com/angelmondragon/storefront-core/pkg/logger"
	"github.com/angelmondragon/storefront-core/pkg/metrics"
	"github.com/angelmondragon/storefront-core/pkg/migrate"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	if !cfg.JWT.Verifies() {
		logg.Warn(context.Background(), "STOREFRONT_JWT_SECRET unset, session claims are not verified (dev only)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefront(registry)

	backend, err := commerce.NewClient(cfg.Backend.BaseURL,
		commerce.WithTimeout(cfg.Backend.Timeout),
		commerce.WithMetrics(storefrontMetrics),
	)
	requireResource(ctx, logg, "commerce backend client", err)

	agentBackend, err := commerce.NewClient(cfg.Backend.AgentURL(),
		commerce.WithTimeout(cfg.Backend.Timeout),
		commerce.WithMetrics(storefrontMetrics),
	)
	requireResource(ctx, logg, "agent backend client", err)

	svc, err := buildServices(cfg, logg, dbClient, redisClient, backend, agentBackend, storefrontMetrics)
	requireResource(ctx, logg, "services", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"backend":       backend.BaseURL(),
		"agent_backend": agentBackend.BaseURL(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	closeErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		os.Exit(1)
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	backend *commerce.Client,
	agentBackend *commerce.Client,
	m *metrics.Storefront,
) (routes.Services, error) {
	engine, err := pricing.NewEngine(pricing.Rules{
		FreeShippingThreshold: money.FromDecimal(cfg.Pricing.FreeShippingThreshold),
		FlatShippingFee:       money.FromDecimal(cfg.Pricing.FlatShippingFee),
		VariantPolicy:         pricing.VariantPolicy(cfg.Pricing.VariantMatchPolicy),
	})
	if err != nil {
		return routes.Services{}, err
	}

	slots, err := coupons.NewRedisSlotStore(redisClient, cfg.Coupons.SlotTTL)
	if err != nil {
		return routes.Services{}, err
	}
	couponService, err := coupons.NewService(backend, slots, m, logg)
	if err != nil {
		return routes.Services{}, err
	}

	addressService, err := address.NewService(backend, logg)
	if err != nil {
		return routes.Services{}, err
	}

	cartService, err := cart.NewService(backend, engine, couponService, addressService, logg)
	if err != nil {
		return routes.Services{}, err
	}

	checkoutService, err := checkout.NewService(
		backend,
		checkout.NewRepository(dbClient.DB()),
		couponService,
		m,
		logg,
		checkout.Options{
			RequireReview:  cfg.Checkout.RequireReview,
			PendingTimeout: cfg.Checkout.PendingTimeout,
			CommitTimeout:  cfg.Checkout.CommitTimeout,
		},
	)
	if err != nil {
		return routes.Services{}, err
	}

	ordersService, err := orders.NewService(backend, m, logg)
	if err != nil {
		return routes.Services{}, err
	}

	deliveryService, err := delivery.NewService(agentBackend, m, logg)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Cart:      cartService,
		Addresses: addressService,
		Coupons:   couponService,
		Pricing:   engine,
		Checkout:  checkoutService,
		Orders:    ordersService,
		Delivery:  deliveryService,
	}, nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
