package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/smilepay-service/internal/adapters/lock"
	"github.com/kevin07696/smilepay-service/internal/adapters/postgres"
	"github.com/kevin07696/smilepay-service/internal/adapters/smilepay"
	"github.com/kevin07696/smilepay-service/internal/config"
	domainports "github.com/kevin07696/smilepay-service/internal/domain/ports"
	smilepayHandler "github.com/kevin07696/smilepay-service/internal/handlers/smilepay"
	instructionService "github.com/kevin07696/smilepay-service/internal/services/instruction"
	notificationService "github.com/kevin07696/smilepay-service/internal/services/notification"
	providerService "github.com/kevin07696/smilepay-service/internal/services/provider"
	pkghttp "github.com/kevin07696/smilepay-service/pkg/http"
	"github.com/kevin07696/smilepay-service/pkg/middleware"
	"github.com/kevin07696/smilepay-service/pkg/observability"
	"github.com/kevin07696/smilepay-service/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n\n%s", err, config.Usage())
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting SmilePay service",
		zap.String("version", "0.1.0"),
		zap.String("environment", cfg.Environment),
	)

	ctx := context.Background()

	// Initialize database connection pool
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	redisClient, err := initRedis(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	// Initialize dependencies
	deps := initDependencies(ctx, dbPool, redisClient, cfg, logger)

	router := httprouter.New()
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		logger.Error("Panic in handler", zap.Any("panic", v), zap.String("path", r.URL.Path))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	deps.smilepayHandler.Register(router)
	deps.providerHandler.Register(router)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
	}, logger)

	handler := middleware.Chain(
		observability.InstrumentHandler("smilepay", router),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.SecurityHeaders(cfg.IsProduction()),
		rateLimiter.Middleware,
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Components shut down in reverse registration order
	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	shutdownMgr.RegisterNoErr("postgres", dbPool.Close)
	if redisClient != nil {
		shutdownMgr.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdownMgr.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)

	// Metrics and health checks on a separate port
	healthChecker := observability.NewHealthChecker(dbPool, redisClient)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownMgr.Register("metrics_server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})
	logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
			zap.String("public_base_url", cfg.Server.PublicBaseURL),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	shutdownMgr.RegisterHTTPServer("http_server", httpServer)

	if err := shutdownMgr.WaitForShutdown(); err != nil {
		logger.Error("Shutdown completed with errors", zap.Error(err))
	}
}

// Dependencies holds all initialized services and handlers
type Dependencies struct {
	smilepayHandler *smilepayHandler.Handler
	providerHandler *smilepayHandler.ProviderHandler
}

// initLogger initializes the logger
func initLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if cfg.IsProduction() {
		zapCfg := zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		logger, _ := zapCfg.Build()
		return logger
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("database", poolConfig.ConnConfig.Database),
	)
	return pool, nil
}

// initRedis returns nil when no Redis URL is configured
func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, error) {
	if cfg.Redis.URL == "" {
		logger.Info("REDIS_URL not set, using in-process transaction lock")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", opts.Addr))
	return client, nil
}

func initLocker(redisClient redis.UniversalClient, cfg *config.Config, logger *zap.Logger) domainports.Locker {
	if redisClient == nil {
		return lock.NewMemoryLocker()
	}
	lockCfg := lock.DefaultRedisLockConfig()
	lockCfg.TTL = cfg.Redis.LockTTL
	return lock.NewRedisLocker(redisClient, lockCfg, logger)
}

func initDependencies(ctx context.Context, dbPool *pgxpool.Pool, redisClient redis.UniversalClient, cfg *config.Config, logger *zap.Logger) *Dependencies {
	db := postgres.NewDBExecutor(dbPool)

	txRepo := postgres.NewTransactionRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	notifLog := postgres.NewNotificationLogRepository(db)

	locker := initLocker(redisClient, cfg, logger)

	secretMgr := initSecretManager(ctx, cfg, logger)
	cache := providerService.NewCredentialCache(providerRepo, secretMgr, logger, cfg.ProviderCache.TTL, cfg.ProviderCache.MaxSize)
	providers := providerService.NewService(providerRepo, cache, secretMgr, logger)

	// Gateway client: transport tuning from pkg/http, overall bound from config
	httpClient := pkghttp.NewHTTPClient(pkghttp.GatewayClientConfig(), cfg.Gateway.Timeout)
	gatewayCfg := smilepay.DefaultConfig()
	gatewayCfg.Timeout = cfg.Gateway.Timeout
	gatewayCfg.UserAgent = cfg.Gateway.UserAgent
	gatewayCfg.CircuitBreaker.MaxFailures = cfg.Gateway.CircuitMaxFailures
	gatewayCfg.CircuitBreaker.Timeout = cfg.Gateway.CircuitOpenTimeout
	gateway := smilepay.NewClient(gatewayCfg, httpClient, logger)

	instructions := instructionService.NewService(txRepo, providers, gateway, locker, cfg.Server.PublicBaseURL, logger)
	notifications := notificationService.NewService(txRepo, providers, notifLog, locker, logger)

	logger.Info("Services initialized",
		zap.String("secrets_backend", cfg.Secrets.Backend),
		zap.Bool("distributed_lock", redisClient != nil),
	)

	return &Dependencies{
		smilepayHandler: smilepayHandler.NewHandler(instructions, notifications, logger),
		providerHandler: smilepayHandler.NewProviderHandler(providers, logger),
	}
}
