package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/GoCodeAlone/console/alert"
	"github.com/GoCodeAlone/console/api"
	"github.com/GoCodeAlone/console/audit"
	"github.com/GoCodeAlone/console/billing"
	"github.com/GoCodeAlone/console/cache"
	"github.com/GoCodeAlone/console/ledger"
	"github.com/GoCodeAlone/console/metrics"
	"github.com/GoCodeAlone/console/notify"
	"github.com/GoCodeAlone/console/store"
)

var (
	addr                = flag.String("addr", ":8080", "HTTP listen address")
	databaseURL         = flag.String("database-url", "", "PostgreSQL connection URL (or set DATABASE_URL env); SQLite is used when empty")
	sqlitePath          = flag.String("sqlite", "console.db", "SQLite database path for single-node deployments")
	jwtSecret           = flag.String("jwt-secret", "", "HMAC secret for tenant bearer tokens; falls back to the X-Tenant-ID header when empty")
	allowedTenants      = flag.String("allowed-tenants", "", "Comma-separated tenant allowlist (empty allows all)")
	rateLimit           = flag.Int("rate-limit", 120, "Per-tenant requests per minute on billing routes (0 uses the registry default)")
	sweepInterval       = flag.Duration("sweep-interval", time.Minute, "Budget alert sweep interval (0 disables the sweep)")
	cacheTTL            = flag.Duration("cache-ttl", 30*time.Second, "Usage overview cache TTL")
	redisAddr           = flag.String("redis-addr", "", "Redis address for the usage cache (in-process cache when empty)")
	natsURL             = flag.String("nats-url", "", "NATS server URL for email alert delivery")
	chatWebhook         = flag.String("chat-webhook", "", "Webhook URL for chat alert delivery")
	stripeKey           = flag.String("stripe-key", "", "Stripe API key (or set STRIPE_SECRET_KEY env); simulated checkout when empty")
	stripeWebhookSecret = flag.String("stripe-webhook-secret", "", "Stripe webhook signing secret (or set STRIPE_WEBHOOK_SECRET env)")
	priceStarter        = flag.String("stripe-price-starter", "", "Stripe price ID for the starter plan")
	priceProfessional   = flag.String("stripe-price-professional", "", "Stripe price ID for the professional plan")
	checkoutSuccessURL  = flag.String("checkout-success-url", "", "Redirect URL after a completed checkout")
	checkoutCancelURL   = flag.String("checkout-cancel-url", "", "Redirect URL after an abandoned checkout")
)

func main() {
	flag.Parse()
	applyEnvOverrides()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	app, err := setup(context.Background(), logger)
	if err != nil {
		log.Fatalf("Failed to set up server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("Shutting down...")
		cancel()
	}()

	fmt.Printf("Console server started on %s\n", *addr)
	if err := run(ctx, app, *addr); err != nil {
		app.Close()
		log.Fatalf("Server failed: %v", err)
	}

	app.Close()
	fmt.Println("Shutdown complete")
}

// backingStore is the accessor surface shared by the SQLite and Postgres
// store backends.
type backingStore interface {
	Subscriptions() store.SubscriptionStore
	Ledger() store.LedgerStore
	Alerts() store.AlertConfigStore
	Notifications() store.AlertNotificationStore
	Audit() store.AuditStore
	Ping(ctx context.Context) error
}

// serverApp holds the wired application: the HTTP surface plus the background
// workers run starts and the connections Close releases.
type serverApp struct {
	logger    *slog.Logger
	handler   http.Handler
	sync      *billing.Synchronizer
	deliverer *notify.Deliverer
	detector  *alert.Detector
	sweep     time.Duration
	closers   []func() error
}

// setup wires every component from the parsed flags: store backend, cache,
// payment processor, notification channels, alert stack, and the API router.
func setup(ctx context.Context, logger *slog.Logger) (*serverApp, error) {
	app := &serverApp{logger: logger, sweep: *sweepInterval}

	st, err := openStore(ctx, app)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector("console")
	auditLog := audit.NewLogger(os.Stdout, st.Audit())

	credits := ledger.NewService(st.Ledger(), logger, collector, auditLog)
	aggregator := ledger.NewAggregator(st.Ledger(), nil)

	backend, err := openCache(ctx, app, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	overviews := cache.NewOverviewCache(aggregator, backend, *cacheTTL, logger)
	credits.SetInvalidator(overviews)

	// The billing mode is decided once here: a configured Stripe key means
	// live checkout sessions, otherwise checkouts activate synchronously.
	stripeSecret := envOrFlag("STRIPE_SECRET_KEY", stripeKey)
	mode := billing.ModeSimulated
	var processor billing.ProcessorClient = billing.NewMockProcessor()
	if stripeSecret != "" {
		mode = billing.ModeLive
		processor = billing.NewStripeClient(stripeSecret, 10*time.Second)
	}

	prices := billing.PlanPrices{}
	if *priceStarter != "" {
		prices[billing.PlanStarter.ID] = *priceStarter
	}
	if *priceProfessional != "" {
		prices[billing.PlanProfessional.ID] = *priceProfessional
	}

	urls := billing.CheckoutURLs{SuccessURL: *checkoutSuccessURL, CancelURL: *checkoutCancelURL}
	sync := billing.NewSynchronizer(st.Subscriptions(), processor, prices, mode, urls, logger, collector, auditLog)
	webhooks := billing.NewWebhookRouter(envOrFlag("STRIPE_WEBHOOK_SECRET", stripeWebhookSecret), sync, logger, collector, auditLog)

	deadLetters := notify.NewDeadLetterStore()
	email, chat, err := openChannels(app, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	deliverer := notify.NewDeliverer(notify.DefaultRetryConfig(), email, chat, deadLetters, logger, collector)

	dispatcher := alert.NewDispatcher(st.Notifications(), deliverer, logger, collector, auditLog)
	detector := alert.NewDetector(st.Alerts(), st.Subscriptions(), aggregator, dispatcher, logger, collector)
	alerts := alert.NewService(st.Alerts(), detector, logger, auditLog)

	app.handler = api.NewRouter(api.Services{
		Sync:        sync,
		Webhooks:    webhooks,
		Alerts:      alerts,
		Credits:     credits,
		Usage:       overviews,
		DeadLetters: deadLetters,
		Deliverer:   deliverer,
		Health:      st,
		Collector:   collector,
		Logger:      logger,
	}, api.Config{
		JWTSecret:      *jwtSecret,
		AllowedTenants: splitList(*allowedTenants),
		RateLimit:      *rateLimit,
	})

	app.sync = sync
	app.deliverer = deliverer
	app.detector = detector
	return app, nil
}

func openStore(ctx context.Context, app *serverApp) (backingStore, error) {
	if *databaseURL != "" {
		pg, err := store.NewPGStore(ctx, store.PGConfig{URL: *databaseURL})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.NewMigrator(pg.Pool()).Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		app.closers = append(app.closers, func() error {
			pg.Close()
			return nil
		})
		return pg, nil
	}

	if *sqlitePath != "" {
		lite, err := store.NewSQLiteStore(*sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		app.closers = append(app.closers, lite.Close)
		return lite, nil
	}

	return nil, errors.New("no database configured: set -database-url or -sqlite")
}

func openCache(ctx context.Context, app *serverApp, logger *slog.Logger) (cache.Cache, error) {
	if *redisAddr == "" {
		return cache.NewMemory(cache.MemoryConfig{DefaultTTL: *cacheTTL}), nil
	}

	r := cache.NewRedis(cache.RedisConfig{
		Address:    *redisAddr,
		Prefix:     "console:",
		DefaultTTL: *cacheTTL,
	}, logger)
	if err := r.Start(ctx); err != nil {
		return nil, fmt.Errorf("start redis cache: %w", err)
	}
	app.closers = append(app.closers, func() error {
		return r.Stop(context.Background())
	})
	return r, nil
}

func openChannels(app *serverApp, logger *slog.Logger) (notify.Channel, notify.Channel, error) {
	var email, chat notify.Channel
	if *natsURL != "" {
		conn, err := nats.Connect(*natsURL, nats.Name("console-notify"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		app.closers = append(app.closers, func() error {
			conn.Close()
			return nil
		})
		email = notify.NewEmailChannel(conn, "", logger)
	}
	if *chatWebhook != "" {
		chat = notify.NewChatChannel(*chatWebhook, logger)
	}
	return email, chat, nil
}

// run starts the delivery worker, the alert sweep, and the HTTP server, then
// blocks until ctx is cancelled and everything has shut down.
func run(ctx context.Context, app *serverApp, addr string) error {
	if err := app.deliverer.Start(ctx); err != nil {
		return fmt.Errorf("start deliverer: %w", err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if app.sweep > 0 {
		go app.sweepLoop(sweepCtx)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		_ = app.deliverer.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && firstErr == nil {
		firstErr = err
	}
	if err := app.deliverer.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop deliverer: %w", err)
	}
	return firstErr
}

func (a *serverApp) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggered, err := a.detector.Sweep(ctx)
			if err != nil {
				a.logger.Error("alert sweep failed", "error", err)
				continue
			}
			if triggered > 0 {
				a.logger.Info("alert sweep triggered notifications", "count", triggered)
			}
		}
	}
}

// Close releases connections in reverse acquisition order.
func (a *serverApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
