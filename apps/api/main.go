package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	featureshandler "github.com/nimbuserp/nimbus-saas/domains/features/be/handler"
	featuresrepo "github.com/nimbuserp/nimbus-saas/domains/features/be/repo"
	featuresservice "github.com/nimbuserp/nimbus-saas/domains/features/be/service"
	provadapters "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/adapters"
	provhandler "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/handler"
	provrepo "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/repo"
	provservice "github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
	tenantshandler "github.com/nimbuserp/nimbus-saas/domains/tenants/be/handler"
	tenantsrepo "github.com/nimbuserp/nimbus-saas/domains/tenants/be/repo"
	tenantsservice "github.com/nimbuserp/nimbus-saas/domains/tenants/be/service"
	platformauth "github.com/nimbuserp/nimbus-saas/platform/go/auth"
	platformlogging "github.com/nimbuserp/nimbus-saas/platform/go/logging"
	platformmetrics "github.com/nimbuserp/nimbus-saas/platform/go/metrics"
	platformmiddleware "github.com/nimbuserp/nimbus-saas/platform/go/middleware"
	"github.com/nimbuserp/nimbus-saas/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	JWTSecret       string        `env:"JWT_SECRET,required"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"hs256"` // hs256 | dev

	DBServiceURL    string `env:"DBSERVICE_URL,required"`
	DBServiceAPIKey string `env:"DBSERVICE_API_KEY"`

	PrimaryOdooURL      string `env:"PRIMARY_ODOO_URL,required"`
	PrimaryOdooLogin    string `env:"PRIMARY_ODOO_LOGIN,required"`
	PrimaryOdooPassword string `env:"PRIMARY_ODOO_PASSWORD,required"`

	SecondaryOdooURL      string `env:"SECONDARY_ODOO_URL,required"`
	SecondaryOdooDatabase string `env:"SECONDARY_ODOO_DATABASE,required"`
	SecondaryOdooLogin    string `env:"SECONDARY_ODOO_LOGIN,required"`
	SecondaryOdooPassword string `env:"SECONDARY_ODOO_PASSWORD,required"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := persistence.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)
	platformmetrics.RegisterPgxPoolMetrics(pool)

	tenantStore, err := persistence.NewTenantStore(pool)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	jobStore, err := persistence.NewJobStore(pool)
	if err != nil {
		logger.Fatal("init job store", zap.Error(err))
	}
	featureStore, err := persistence.NewFeatureStore(pool)
	if err != nil {
		logger.Fatal("init feature store", zap.Error(err))
	}

	tenantRepo := tenantsrepo.NewPostgresRepository(tenantStore)
	tenantService := tenantsservice.New(tenantRepo)

	jobRepo := provrepo.NewPostgresRepository(jobStore)
	gateway := provadapters.NewTenantGateway(tenantService)
	adapters := provservice.Adapters{
		Database: provadapters.NewDBServiceClient(cfg.DBServiceURL, cfg.DBServiceAPIKey, logger),
		Primary: provadapters.NewPrimaryOdoo(provadapters.OdooConfig{
			Endpoint: cfg.PrimaryOdooURL,
			Login:    cfg.PrimaryOdooLogin,
			Password: cfg.PrimaryOdooPassword,
		}, logger),
		Secondary: provadapters.NewSecondaryOdoo(provadapters.OdooConfig{
			Endpoint: cfg.SecondaryOdooURL,
			Login:    cfg.SecondaryOdooLogin,
			Password: cfg.SecondaryOdooPassword,
		}, cfg.SecondaryOdooDatabase, logger),
	}

	executor := provservice.NewExecutor(jobRepo, gateway, adapters, logger).
		WithObserver(platformmetrics.NewPipelineObserver())
	pipeline := provservice.NewPipeline(jobRepo, executor, logger)
	retry := provservice.NewRetry(jobRepo, executor, logger)
	reporter := provservice.NewStatusReporter(jobRepo, gateway)

	featureService := featuresservice.New(featuresrepo.NewPostgresRepository(featureStore), tenantService)

	tenantHTTPHandler := tenantshandler.New(tenantService, pipeline, logger)
	provHTTPHandler := provhandler.New(reporter, retry, logger)
	featuresHTTPHandler := featureshandler.New(featureService, logger)

	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "hs256":
		verify = platformauth.HS256TokenVerifier([]byte(cfg.JWTSecret))
	case "dev":
		logger.Warn("using unsigned token verification; development only")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("invalid AUTH_PROVIDER (use hs256 or dev)", zap.String("provider", cfg.AuthProvider))
	}
	authMiddleware := platformauth.JWT(verify, platformauth.DefaultCredentialExtractor)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))
	rootRouter.Use(platformmetrics.HTTP)

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)

	// Public signup plus the token-scoped customer endpoints.
	apiRouter.Group(func(r chi.Router) {
		tenantHTTPHandler.Routes(r)
		provHTTPHandler.Routes(r)
	})

	// Billing webhook; authenticated with the shared secret like any client.
	apiRouter.Route("/webhooks", func(r chi.Router) {
		featuresHTTPHandler.WebhookRoutes(r)
	})

	// Platform-admin surface.
	apiRouter.Route("/admin", func(r chi.Router) {
		r.Use(platformauth.RequireRole("admin"))
		tenantHTTPHandler.AdminRoutes(r)
		provHTTPHandler.AdminRoutes(r)
		featuresHTTPHandler.AdminRoutes(r)
	})

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
