// Package app wires configuration, storage, domain services and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopforge/orderflow/internal/audit"
	"github.com/shopforge/orderflow/internal/domain/campaign"
	"github.com/shopforge/orderflow/internal/domain/order"
	"github.com/shopforge/orderflow/internal/domain/pricing"
	"github.com/shopforge/orderflow/internal/domain/promotion"
	"github.com/shopforge/orderflow/internal/gateway"
	"github.com/shopforge/orderflow/internal/handler"
	"github.com/shopforge/orderflow/internal/storage/postgres"
	"github.com/shopforge/orderflow/pkg/health"
	"github.com/shopforge/orderflow/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
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

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	stockLedger := postgres.NewStockLedger(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)
	promoRepo := postgres.NewPromotionRepository(pool)
	cartStore := postgres.NewCartStore(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Promotion code existence filter, seeded from the codes table.
	codeFilter := promotion.NewCodeFilter(cfg.Promo.FilterCapacity, cfg.Promo.FilterFPRate)
	codes, err := promoRepo.CodeValues(ctx)
	if err != nil {
		return errors.Wrap(err, "load promotion codes")
	}
	for _, code := range codes {
		codeFilter.Add(code)
	}
	lg.Info("Promotion filter seeded", zap.Int("codes", len(codes)))

	// Domain services.
	validator := promotion.NewValidator(promoRepo, orderRepo,
		promotion.WithFilter(codeFilter))
	engine := campaign.NewEngine(lg.Named("campaign"))

	taxRate, err := cfg.Tax.Rate()
	if err != nil {
		return err
	}
	pricer := pricing.NewCalculator(pricing.NewStaticTaxResolver(taxRate))

	var gatewayOpts []gateway.SimulatorOption
	if cfg.Payment.AuthLimit != "" {
		limit, err := decimal.NewFromString(cfg.Payment.AuthLimit)
		if err != nil {
			return errors.Wrap(err, "parse payment auth limit")
		}
		gatewayOpts = append(gatewayOpts, gateway.WithAuthLimit(limit))
	}
	paymentGateway := gateway.NewSimulator(lg.Named("gateway"), gatewayOpts...)

	auditSink, closeAudit, err := buildAuditSink(cfg.Audit, lg)
	if err != nil {
		return err
	}
	defer closeAudit()

	checkout := order.NewCheckout(order.Deps{
		Products:   productRepo,
		Ledger:     stockLedger,
		Campaigns:  campaignRepo,
		CampaignCt: campaignRepo,
		Engine:     engine,
		Promotions: validator,
		PromoCt:    promoRepo,
		Pricer:     pricer,
		Carts:      cartStore,
		Gateway:    paymentGateway,
		Orders:     orderRepo,
		Audit:      auditSink,
		Logger:     lg.Named("checkout"),
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(lg.Named("http"), checkout, productRepo).Register(mux)

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
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("orderflow-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// buildAuditSink routes audit events to a JSONL file when configured, or to
// the structured log otherwise.
func buildAuditSink(cfg AuditConfig, lg *zap.Logger) (audit.Sink, func(), error) {
	if cfg.File == "" {
		return audit.NewZapSink(lg.Named("audit")), func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open audit file")
	}
	closeFile := func() {
		if err := f.Close(); err != nil {
			lg.Error("close audit file", zap.Error(err))
		}
	}
	return audit.NewWriterSink(f, lg.Named("audit")), closeFile, nil
}
