// Package app wires configuration, the session store, the external service
// clients, and the HTTP server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/checkout-bridge/internal/checkout"
	"github.com/xenking/checkout-bridge/internal/commerce"
	"github.com/xenking/checkout-bridge/internal/currency"
	"github.com/xenking/checkout-bridge/internal/handler"
	"github.com/xenking/checkout-bridge/internal/payment"
	"github.com/xenking/checkout-bridge/internal/render"
	"github.com/xenking/checkout-bridge/internal/session"
	"github.com/xenking/checkout-bridge/pkg/health"
	"github.com/xenking/checkout-bridge/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if missing := cfg.MissingKeys(); len(missing) > 0 {
		lg.Warn("Running with incomplete configuration; submissions will fail",
			zap.Strings("missing", missing))
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	sessions, err := newSessionStore(cfg.Session, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create session store")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	svc := checkout.NewService(
		checkout.Config{
			FrontendBaseURL: cfg.FrontendBaseURL,
			Currency:        cfg.Currency,
			ShippingFee:     decimal.RequireFromString(cfg.ShippingFee),
			ConvertCurrency: cfg.Rates.Convert,
			CODEnabled:      cfg.Payment.CODEnabled,
			HMACSecret:      []byte(cfg.Payment.HMACSecret),
			MissingKeys:     cfg.MissingKeys(),
		},
		sessions,
		newConverter(cfg.Rates),
		commerce.NewHTTPClient(cfg.Store.Domain, cfg.Store.AccessToken),
		payment.NewHTTPClient(cfg.Payment.BaseURL, cfg.Payment.APIKey, map[payment.Method]payment.MethodConfig{
			payment.MethodCard: {
				IntegrationID: cfg.Payment.CardIntegrationID,
				TemplateID:    cfg.Payment.CardTemplateID,
			},
			payment.MethodWallet: {
				IntegrationID: cfg.Payment.WalletIntegrationID,
				TemplateID:    cfg.Payment.WalletTemplateID,
			},
		}),
	)

	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins: cfg.CORS.Origins,
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       cfg.CORS.MaxAge,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.New(svc, render.NewTemplateRenderer()).Register(r)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Instrument("checkout-bridge", m.TracerProvider(), m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
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

// newSessionStore picks Redis when a URL is configured, otherwise the
// in-process store. The Redis variant registers a readiness check.
func newSessionStore(cfg SessionConfig, healthSvc *health.Service) (session.Store, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore(cfg.TTL), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	store := session.NewRedisStore(redis.NewClient(opts), cfg.TTL)
	healthSvc.AddReadinessCheck("redis", 5*time.Second, store.Ping)
	return store, nil
}

// newConverter picks the live feed with caching when a URL is configured,
// otherwise the fixed rate.
func newConverter(cfg RatesConfig) currency.Converter {
	fixed := decimal.RequireFromString(cfg.Fixed)
	if cfg.URL == "" {
		return currency.NewFixed(fixed)
	}
	return currency.NewCached(currency.NewHTTPSource(cfg.URL, cfg.Timeout), cfg.CacheTTL, fixed)
}
