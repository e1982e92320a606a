package main

// @title Verdant Digital Express Build API
// @version 1.0
// @description Payment intents, Stripe webhooks and payment status for the Express Build checkout.

// @contact.name Verdant Digital
// @contact.email hello@verdantdigital.com.au

// @BasePath /

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/verdantdigital/expressbuild/config"
	_ "github.com/verdantdigital/expressbuild/docs" // Swagger docs
	apierrors "github.com/verdantdigital/expressbuild/pkg/api/errors"
	"github.com/verdantdigital/expressbuild/pkg/api/handlers"
	"github.com/verdantdigital/expressbuild/pkg/billing"
	"github.com/verdantdigital/expressbuild/pkg/cache"
	"github.com/verdantdigital/expressbuild/pkg/database"
	"github.com/verdantdigital/expressbuild/pkg/email"
	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/jobs"
	"github.com/verdantdigital/expressbuild/pkg/logger"
	"github.com/verdantdigital/expressbuild/pkg/metrics"
	custommiddleware "github.com/verdantdigital/expressbuild/pkg/middleware"
	"github.com/verdantdigital/expressbuild/pkg/slack"
)

// paymentStore is satisfied by both the Redis and the in-process store
type paymentStore interface {
	billing.IntentStore
	billing.EventStore
}

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	if err := cfg.Validate(); err != nil {
		if cfg.IsProduction() {
			log.Fatalf("❌ %v", err)
		}
		log.Printf("⚠️  %v (payments will fail until set)", err)
	}
	if cfg.GeminiAPIKey == "" {
		log.Printf("ℹ️  GEMINI_API_KEY not set, the site audit widget serves its static fallback")
	}
	if cfg.Web3FormsAccessKey == "" {
		log.Printf("ℹ️  WEB3FORMS_ACCESS_KEY not set, consultation bookings are not relayed")
	}

	appLog := logger.New(cfg.LogLevel)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Fulfillment ledger
	var ledger *fulfillment.Ledger
	var dbPinger handlers.Pinger
	if cfg.DatabaseURL != "" {
		db, err := database.NewClient(cfg.DatabaseURL, &database.SSLConfig{
			Mode:         cfg.DBSSLMode,
			RootCertPath: cfg.DBSSLRootCertPath,
		})
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.Migrate(migrateCtx, db.DB)
		cancel()
		if err != nil {
			log.Fatalf("❌ Failed to run migrations: %v", err)
		}
		log.Printf("✅ Database migrations applied")

		ledger = fulfillment.NewLedger(db.DB)
		dbPinger = db
	} else {
		log.Printf("⚠️  DATABASE_URL not set, fulfillment ledger disabled")
	}

	// Idempotency keys and webhook de-duplication
	var store paymentStore
	var cachePinger handlers.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		switch {
		case err == nil:
			defer redisClient.Close()
			store = cache.NewPaymentStore(redisClient)
			cachePinger = redisClient
		case cfg.IsProduction():
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		default:
			log.Printf("⚠️  Redis unavailable (%v), using in-process store", err)
		}
	}
	if store == nil {
		store = cache.NewMemoryPaymentStore(cache.DefaultMemoryEntries)
	}

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Outbound notifications
	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey)
	var slackService *slack.Service
	if cfg.SlackWebhookURL != "" {
		slackService = slack.NewService(slack.NewWebhookClient(cfg.SlackWebhookURL))
		log.Printf("✅ Slack notifications enabled")
	}

	// Payments
	gateway := billing.NewStripeGateway(cfg.StripeSecretKey, nil)

	issuer := billing.NewIssuer(gateway, validator.New())
	issuer.SetIntentStore(store)
	issuer.SetMetrics(prometheusMetrics)

	receiver := billing.NewReceiver(cfg.StripeWebhookSecret, appLog.With("component", "webhook"))
	receiver.SetEventStore(store)
	receiver.SetEmailSender(billing.NewEmailServiceAdapter(emailService))
	receiver.SetMetrics(prometheusMetrics)

	var status *billing.StatusService
	if ledger != nil {
		issuer.SetLedger(ledger)
		receiver.SetLedger(ledger)
		status = billing.NewStatusService(gateway, ledger)
	} else {
		status = billing.NewStatusService(gateway, nil)
	}
	if slackService.IsEnabled() {
		receiver.SetNotifier(slackService)
	}

	// Reconciliation against Stripe
	var cronManager *jobs.CronManager
	if ledger != nil && cfg.ReconcileEnabled {
		reconciler := jobs.NewReconciler(ledger, gateway, cfg.ReconcileGracePeriod, appLog.With("component", "reconciler"))
		reconciler.SetMetrics(prometheusMetrics)
		if slackService.IsEnabled() {
			reconciler.SetNotifier(slackService)
		}
		cronManager = jobs.NewCronManager(reconciler, cfg.ReconcileSchedule, log.Default())
		if err := cronManager.SetupJobs(); err != nil {
			log.Fatalf("❌ Invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
		}
		cronManager.Start()
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apierrors.HTTPErrorHandler

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	intentRateLimiter := custommiddleware.NewRateLimiter(10, 3)    // 10 req/min for payment intents
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20) // 100 req/min for Stripe webhooks

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.FrontendURL)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(middleware.BodyLimit(bodyLimit))

	registerRoutes(e, routes{
		environment:  cfg.APIEnvironment,
		payments:     handlers.NewPaymentHandler(issuer, status),
		webhook:      handlers.NewWebhookHandler(receiver),
		health:       handlers.NewHealthHandler(dbPinger, cachePinger),
		globalLimit:  globalRateLimiter.Middleware(),
		intentLimit:  intentRateLimiter.Middleware(),
		webhookLimit: webhookRateLimiter.Middleware(),
	})

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Express Build API starting on %s", address)
	log.Printf("💳 Stripe mode: %s", cfg.StripeMode())
	log.Printf("🌍 CORS: %s", cfg.FrontendURL)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), payment intents 10/min, webhook 100/min", cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	if emailService.IsLive() {
		log.Printf("📧 Receipts sent via SendGrid")
	} else {
		log.Printf("📧 Receipts logged to console (no SENDGRID_API_KEY)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("🛑 Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("❌ %v", err)
	}

	if cronManager != nil {
		cronManager.Stop()
		log.Println("✅ Cron jobs stopped")
	}

	// Let queued receipts and alerts finish
	receiver.Wait()

	globalRateLimiter.Stop()
	intentRateLimiter.Stop()
	webhookRateLimiter.Stop()

	log.Println("✅ Server gracefully stopped")
}
