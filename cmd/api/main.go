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

	"github.com/anucarts/marketplace-backend/api/controllers"
	"github.com/anucarts/marketplace-backend/api/routes"
	"github.com/anucarts/marketplace-backend/internal/auth"
	"github.com/anucarts/marketplace-backend/internal/cart"
	"github.com/anucarts/marketplace-backend/internal/fanout"
	"github.com/anucarts/marketplace-backend/internal/media"
	"github.com/anucarts/marketplace-backend/internal/orders"
	products "github.com/anucarts/marketplace-backend/internal/products"
	"github.com/anucarts/marketplace-backend/internal/sellers"
	"github.com/anucarts/marketplace-backend/internal/users"
	"github.com/anucarts/marketplace-backend/pkg/auth/session"
	"github.com/anucarts/marketplace-backend/pkg/config"
	"github.com/anucarts/marketplace-backend/pkg/db"
	"github.com/anucarts/marketplace-backend/pkg/logger"
	"github.com/anucarts/marketplace-backend/pkg/metrics"
	"github.com/anucarts/marketplace-backend/pkg/migrate"
	"github.com/anucarts/marketplace-backend/pkg/outbox"
	"github.com/anucarts/marketplace-backend/pkg/redis"
	"github.com/anucarts/marketplace-backend/pkg/storage/gcs"
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

	logg = logger.ForApp("api", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.ApplyOnBoot(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	services, err := buildServices(cfg, logg, dbClient, redisClient, gcsClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"gcs":   gcsClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, sessionManager, readiness, prometheus.DefaultGatherer, services),
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
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	gcsClient *gcs.Client,
	sessionManager *session.Manager,
) (routes.Services, error) {
	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	sellerRepo := sellers.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		UserRepo:       userRepo,
		SellerRepo:     sellerRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	sellerService, err := sellers.NewService(sellerRepo)
	if err != nil {
		return routes.Services{}, err
	}

	mediaService, err := media.NewService(gcsClient, cfg.Media.MaxImageBytes(), cfg.GCS.UploadTimeout, logg)
	if err != nil {
		return routes.Services{}, err
	}

	productService, err := products.NewService(productRepo, mediaService)
	if err != nil {
		return routes.Services{}, err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:     cart.NewRepository(conn),
		DB:       dbClient,
		Products: productRepo,
		Cache:    cart.NewCache(redisClient, redisClient, cfg.Redis.CartCacheTTL),
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	fanoutService, err := fanout.NewService(fanout.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Services{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:                orders.NewRepository(conn),
		DB:                  dbClient,
		Users:               userRepo,
		Products:            productRepo,
		Fanout:              fanoutService,
		Outbox:              outbox.NewEmitter(outbox.NewStore(conn), logg),
		Cart:                cartService,
		Metrics:             metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:              logg,
		FanoutTimeout:       cfg.Orders.FanoutTimeout,
		ClearCartOnCheckout: cfg.FeatureFlags.CartClearOnCheckout,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:     authService,
		Sellers:  sellerService,
		Products: productService,
		Media:    mediaService,
		Cart:     cartService,
		Orders:   orderService,
		Fanout:   fanoutService,
	}, nil
}
