package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-offline-sync/config"
	"github.com/fekuna/omnipos-offline-sync/internal/broker"
	"github.com/fekuna/omnipos-offline-sync/internal/cache"
	"github.com/fekuna/omnipos-offline-sync/internal/connectivity"
	"github.com/fekuna/omnipos-offline-sync/internal/database/postgres"
	"github.com/fekuna/omnipos-offline-sync/internal/httpserver"
	"github.com/fekuna/omnipos-offline-sync/internal/idempotency"
	"github.com/fekuna/omnipos-offline-sync/internal/localstore"
	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"github.com/fekuna/omnipos-offline-sync/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cashH "github.com/fekuna/omnipos-offline-sync/internal/cashsession/handler"
	cashRepoPkg "github.com/fekuna/omnipos-offline-sync/internal/cashsession/repository"
	cashUCPkg "github.com/fekuna/omnipos-offline-sync/internal/cashsession/usecase"

	catalogH "github.com/fekuna/omnipos-offline-sync/internal/catalog/handler"
	catalogRepoPkg "github.com/fekuna/omnipos-offline-sync/internal/catalog/repository"
	catalogUCPkg "github.com/fekuna/omnipos-offline-sync/internal/catalog/usecase"

	"github.com/fekuna/omnipos-offline-sync/internal/order"
	orderH "github.com/fekuna/omnipos-offline-sync/internal/order/handler"
	orderRepoPkg "github.com/fekuna/omnipos-offline-sync/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-offline-sync/internal/order/usecase"

	payH "github.com/fekuna/omnipos-offline-sync/internal/payment/handler"
	payListenerPkg "github.com/fekuna/omnipos-offline-sync/internal/payment/listener"
	payUCPkg "github.com/fekuna/omnipos-offline-sync/internal/payment/usecase"

	"github.com/fekuna/omnipos-offline-sync/internal/stock"
	stockH "github.com/fekuna/omnipos-offline-sync/internal/stock/handler"
	stockRepoPkg "github.com/fekuna/omnipos-offline-sync/internal/stock/repository"
	stockUCPkg "github.com/fekuna/omnipos-offline-sync/internal/stock/usecase"

	syncH "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/handler"
	syncRepoPkg "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/repository"
	"github.com/fekuna/omnipos-offline-sync/internal/syncqueue/scheduler"
	syncUCPkg "github.com/fekuna/omnipos-offline-sync/internal/syncqueue/usecase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	healthService = "omnipos.pos.v1.OfflineSync"
	version       = "1.0.0"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	if cfg.Terminal.TenantID == "" || cfg.Terminal.LocationID == "" {
		appLogger.Warn("terminal identity not configured; catalog refresh after drain is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
	})
	if err != nil {
		appLogger.Fatal("Could not initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			appLogger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		appLogger.Info("Exporting traces", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	// 3. Remote store. Opening never fails on an unreachable backend.
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not open database pool", zap.Error(err))
	}
	defer db.Close()

	// 4. Local persistence: Redis when available, memory otherwise
	var (
		persister localstore.Persister = localstore.NewMemoryPersister()
		guard     idempotency.Guard    = idempotency.NewMemoryGuard(cfg.Sync.IdempotencyWindow)
	)
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("Redis unavailable, local mirror will not survive a restart", zap.Error(err))
	} else {
		defer redisClient.Close()
		persister = localstore.NewRedisPersister(redisClient.Client)
		guard = idempotency.NewRedisGuard(redisClient.Client, cfg.Sync.IdempotencyWindow)
		appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	store := localstore.New(persister, localstore.DefaultSchemas()...)
	if err := store.Load(ctx); err != nil {
		appLogger.Fatal("Could not load local mirror", zap.Error(err))
	}

	// 5. Metrics and connectivity
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	monitor := connectivity.NewMonitor(connectivity.NewDBProber(db), cfg.Sync.ProbeInterval, appMetrics, appLogger)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)
	monitor.Subscribe(connectivity.HealthReporter(healthServer, healthService))

	// 6. Initialize Repositories
	timeout := cfg.Postgres.RemoteTimeout
	syncRepo := syncRepoPkg.NewPGRepository(db, timeout)
	stockRepo := stockRepoPkg.NewPGRepository(db, timeout)
	orderRepo := orderRepoPkg.NewPGRepository(db, timeout)
	cashRepo := cashRepoPkg.NewPGRepository(db, timeout)
	catalogRepo := catalogRepoPkg.NewPGRepository(db, timeout)

	// 7. Initialize UseCases
	syncUC := syncUCPkg.NewSyncUseCase(store, syncRepo, monitor, appMetrics, appLogger)
	stockUC := stockUCPkg.NewStockUseCase(stockRepo, store, syncUC, monitor, appMetrics, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, stockUC, syncUC, store, monitor, appMetrics, appLogger)
	cashUC := cashUCPkg.NewCashSessionUseCase(cashRepo, monitor, appLogger)
	catalogUC := catalogUCPkg.NewCatalogUseCase(catalogRepo, store, monitor, appLogger)
	payUC := payUCPkg.NewPaymentUseCase(orderUC, guard, cfg.Terminal.TenantID, cfg.Terminal.LocationID, appLogger)

	syncUC.RegisterReplayer(stock.MovementsTable, stockUC)
	syncUC.RegisterReconciler(stock.MovementsTable, stockUC)
	syncUC.RegisterReconciler(order.OrdersTable, orderUC)
	syncUC.OnDrained(catalogUCPkg.DrainHook(catalogUC, cfg.Terminal.TenantID, cfg.Terminal.LocationID, appLogger))

	if err := syncUC.Recover(ctx); err != nil {
		appLogger.Fatal("Could not recover sync queue", zap.Error(err))
	}

	// 8. Background drain
	runner := scheduler.NewRunner(syncUC, cfg.Sync.DrainInterval, appLogger)
	if err := runner.Start(ctx); err != nil {
		appLogger.Fatal("Could not start sync runner", zap.Error(err))
	}
	defer runner.Stop()
	monitor.Subscribe(runner.OnConnectivity)

	// 9. Payment notifications
	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.PaymentsTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		go payListenerPkg.NewPaymentListener(kafkaConsumer, payUC, appLogger).Start(ctx)
		appLogger.Info("Listening for payment notifications", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.PaymentsTopic))
	}

	go monitor.Run(ctx)

	// 10. Start gRPC Server (health and reflection)
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	go func() {
		appLogger.Info("Starting gRPC server", zap.String("port", port))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve gRPC", zap.Error(err))
		}
	}()

	// 11. Start HTTP Server
	router := httpserver.NewRouter(
		httpserver.Config{
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			DefaultTenant:   cfg.Terminal.TenantID,
			DefaultLocation: cfg.Terminal.LocationID,
		},
		monitor, appMetrics, registry,
		stockH.NewStockHandler(stockUC, appLogger),
		orderH.NewOrderHandler(orderUC, appLogger),
		syncH.NewSyncHandler(syncUC, appLogger),
		cashH.NewCashSessionHandler(cashUC, appLogger),
		catalogH.NewCatalogHandler(catalogUC, appLogger),
		payH.NewWebhookHandler(payUC, appLogger),
	)

	httpPort := cfg.Server.HTTPPort
	if !strings.HasPrefix(httpPort, ":") {
		httpPort = ":" + httpPort
	}
	srv := &http.Server{
		Addr:              httpPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", httpPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve HTTP", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}
