package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openclose/ledger/internal/audit"
	"github.com/openclose/ledger/internal/auth"
	"github.com/openclose/ledger/internal/authz"
	"github.com/openclose/ledger/internal/events"
	"github.com/openclose/ledger/internal/ledger"
	"github.com/openclose/ledger/internal/org"
	"github.com/openclose/ledger/internal/period"
	"github.com/openclose/ledger/internal/report"
	"github.com/openclose/ledger/internal/webhooks"
	"github.com/openclose/ledger/pkg/database"
	"github.com/openclose/ledger/pkg/logger"
	"github.com/openclose/ledger/pkg/middleware"
	"github.com/openclose/ledger/pkg/observability"
)

func main() {
	log, err := logger.New(logger.ParseLevel(envOr("LOG_LEVEL", "info")))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "ledgersvc",
		ServiceVersion: envOr("SERVICE_VERSION", "dev"),
		Environment:    envOr("ENVIRONMENT", "development"),
	}, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	dbPort, _ := strconv.Atoi(envOr("DB_PORT", "5432"))
	db, err := database.NewConnection(database.Config{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     envOr("DB_USER", "user"),
		Password: envOr("DB_PASSWORD", "password"),
		DBName:   envOr("DB_NAME", "openclose_ledger"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	metrics := observability.NewMetrics()

	webhookSvc := webhooks.NewService(db)
	dispatcher := events.NewDispatcher(webhookSvc, log)

	auditSvc := audit.NewService(audit.NewStore(db), dispatcher)

	policyStore := authz.NewStore(db)
	authzSvc := authz.NewService(policyStore, auditSvc, log,
		authz.WithDecisionRecorder(metrics))

	orgSvc := org.NewService(org.NewStore(db))

	authSvc, err := auth.NewService(auth.NewStore(db), envOr("JWT_ISSUER", "openclose-ledger"))
	if err != nil {
		log.Fatal("failed to create auth service", zap.Error(err))
	}

	periodSvc := period.NewService(period.NewStore(db), dispatcher)
	ledgerSvc := ledger.NewService(ledger.NewStore(db), periodSvc, dispatcher)
	reportSvc := report.NewService(report.NewStore(db))

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(cors.New(corsConfig()))
	r.Use(middleware.RateLimitMiddleware(rate.Limit(envFloat("RATE_LIMIT_RPS", 50)), envInt("RATE_LIMIT_BURST", 100)))
	r.Use(observability.PrometheusMiddleware(metrics))
	r.Use(otelgin.Middleware("ledgersvc"))

	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(observability.PrometheusHandler()))

	api := r.Group("/api/v1")

	auth.NewHTTPHandler(authSvc, log).RegisterRoutes(api.Group("/auth"))

	authed := api.Group("", middleware.RequireAuth(authSvc.PublicKey()))
	scoped := authed.Group("", middleware.OrgExtractor(middleware.OrgConfig{}))

	org.NewHTTPHandler(orgSvc, authzSvc, log).RegisterRoutes(authed, scoped)
	authz.NewHTTPHandler(authzSvc, policyStore, orgSvc, log).RegisterRoutes(scoped.Group("/authz"))
	audit.NewHTTPHandler(auditSvc, authzSvc, orgSvc, log).RegisterRoutes(scoped.Group("/audit"))
	period.NewHTTPHandler(periodSvc, authzSvc, orgSvc, log).RegisterRoutes(scoped)
	ledger.NewHTTPHandler(ledgerSvc, authzSvc, orgSvc, log).RegisterRoutes(scoped)
	report.NewHTTPHandler(reportSvc, authzSvc, orgSvc, log).RegisterRoutes(scoped)
	webhooks.NewHTTPHandler(webhookSvc, authzSvc, orgSvc, log).RegisterRoutes(scoped)

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := envOr("CORS_ALLOWED_ORIGINS", "")
	if origins == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(origins, ",")
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.DefaultOrgHeader)
	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
