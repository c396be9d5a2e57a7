// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/itadmit/quickshop-pricing/internal/domain/coupon"
	"github.com/itadmit/quickshop-pricing/internal/domain/pricing"
	"github.com/itadmit/quickshop-pricing/internal/domain/usage"
	"github.com/itadmit/quickshop-pricing/internal/handler"
	"github.com/itadmit/quickshop-pricing/internal/storage/postgres"
	"github.com/itadmit/quickshop-pricing/pkg/health"
	"github.com/itadmit/quickshop-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the service.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Probes.
	healthSvc := health.NewService()
	healthSvc.AddReadiness("postgres", health.PingCheck(pool), health.Options{})
	healthSvc.AddLiveness("goroutines", health.GoroutineCountCheck(10000), health.Options{Timeout: time.Second})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	storeRepo := postgres.NewStoreRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	usageStore := postgres.NewUsageRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	validator := coupon.NewRepoValidator(couponRepo, nil)
	recorder := usage.NewRecorder(usageStore, nil)

	var engineOpts []pricing.Option
	if cfg.Discounts.HaltOnNonStackable {
		engineOpts = append(engineOpts, pricing.WithStackingPolicy(pricing.HaltOnNonStackable))
	}
	engine := pricing.NewEngine(storeRepo, validator, discountRepo, engineOpts...)

	h := handler.NewHandler(
		engine,
		storeRepo,
		validator,
		recorder,
		usageStore,
		apikeyRepo,
		[]byte(cfg.APIKeyPepper),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveHandler)
	mux.HandleFunc("/readyz", healthSvc.ReadyHandler)
	mux.Handle("/api/", otelhttp.NewHandler(h.Routes(), "pricing-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop the listener.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
