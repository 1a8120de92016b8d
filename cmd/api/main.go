package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-trainer/internal/access"
	"sales-trainer/internal/analysis"
	"sales-trainer/internal/audit"
	"sales-trainer/internal/auth"
	"sales-trainer/internal/billing"
	"sales-trainer/internal/catalog"
	"sales-trainer/internal/config"
	"sales-trainer/internal/conversations"
	"sales-trainer/internal/httpapi"
	"sales-trainer/internal/migrations"
	"sales-trainer/internal/observability"
	"sales-trainer/internal/realtime"
	"sales-trainer/internal/reporting"
	"sales-trainer/internal/sessions"
	"sales-trainer/internal/usage"
	"sales-trainer/internal/users"
	"sales-trainer/internal/voice"
	"sales-trainer/pkg/logger"
	"sales-trainer/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, logger.Options{Format: cfg.App.LogFormat, Level: cfg.App.LogLevel})
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		fatal(log, "auth init failed", err)
	}
	idTokens, err := auth.NewVerifier(cfg.Auth.IdentityProjectID, cfg.Auth.JWKSURL)
	if err != nil {
		fatal(log, "id token verifier init failed", err)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		fatal(log, "postgres init failed", err)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := migrations.Up(rootCtx, db, log); err != nil {
			fatal(log, "migrations failed", err)
		}
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		fatal(log, "redis init failed", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("sales_trainer", reg)

	provider, err := analysis.NewProvider(rootCtx, cfg.LLM)
	if err != nil {
		fatal(log, "llm provider init failed", err)
	}
	analyzer := analysis.NewAdapter(provider).WithObserver(metrics.ObserveLLM)

	// Storage
	userStore := users.NewPostgresRepo(db)
	convRepo := conversations.NewPostgresRepo(db)
	billingRecords := billing.NewPostgresRecords(db)

	// Services
	userSvc := users.NewService(userStore)
	usageSvc := usage.NewService(userStore)
	accessSvc := access.NewService(userStore, billingRecords)
	convSvc := conversations.NewService(convRepo)
	catalogSvc := catalog.NewService(catalog.NewPostgresRepo(db))
	billingSvc := billing.NewService(billing.NewStripeGateway(cfg.Stripe.SecretKey), billingRecords, userSvc, cfg.Stripe.WebhookSecret)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	broker := realtime.NewRedisBroker(rdb, log)

	orchestrator := sessions.New(sessions.Deps{
		Gate:          accessSvc,
		Sellers:       catalogSvc,
		Quota:         usageSvc,
		Voice:         voice.NewClient(cfg.Voice),
		Analyzer:      analyzer,
		Conversations: convSvc,
		Limiter:       sessions.NewRedisLimiter(rdb, cfg.Sessions.LeaseTTL),
		Publisher:     broker,
		Metrics:       metrics,
		Logger:        log,
	}, sessions.Options{
		PollAttempts:     cfg.Voice.PollAttempts,
		PollInitialDelay: cfg.Voice.PollInitialDelay,
	})

	h := httpapi.Handlers{
		Auth:               authManager,
		IDTokens:           idTokens,
		Accounts:           auth.NewIdentityToolkit(cfg.Auth.IdentityProjectID, cfg.Auth.IdentityAdminToken),
		Users:              userSvc,
		Access:             accessSvc,
		Usage:              usageSvc,
		Conversations:      convSvc,
		Sessions:           orchestrator,
		Catalog:            catalogSvc,
		Billing:            billingSvc,
		Reporting:          reporting.NewService(convRepo),
		Audit:              auditSvc,
		Realtime:           broker,
		Upgrader:           realtime.NewUpgrader(cfg.App.CORSOrigins),
		Metrics:            metrics,
		CookieName:         cfg.Auth.CookieName,
		CookieSecure:       cfg.Auth.CookieSecure,
		PublicURL:          cfg.App.PublicURL,
		VoiceWebhookSecret: cfg.Voice.WebhookSecret,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.App.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposeHeaders:    []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	gate := auth.SessionGate(authManager, gateOptions(cfg, idTokens, userStore))
	registerRoutes(r, h, gate, readiness(db, rdb))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	// Pending analysis polls either finish or write the unavailable banner.
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error("session shutdown incomplete", "err", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
