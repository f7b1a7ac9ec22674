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

	"connectrpc.com/connect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gembid/pkg/auth"
	pkgdb "github.com/floroz/gembid/pkg/database"
	"github.com/floroz/gembid/pkg/keylock"
	"github.com/floroz/gembid/pkg/telemetry"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/api"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/database"
	"github.com/floroz/gembid/services/bid-service/internal/config"
	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireAPI()
	}
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "bid-service-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// 1. Load JWT public key for token validation
	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		logger.Error("Failed to read public key", "path", cfg.JWTPublicKeyPath, "error", err)
		os.Exit(1)
	}
	verifier, err := auth.NewVerifier(publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}
	logger.Info("JWT public key loaded", "path", cfg.JWTPublicKeyPath)

	// 2. Initialize Postgres Connection Pool
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 3. Choose the per-listing lock. Redis is required once more than one API instance runs.
	var locker keylock.Locker = keylock.NewLocalLocker()
	if cfg.LockBackend == config.LockBackendRedis {
		redisOpts, optsErr := cfg.RedisOptions()
		if optsErr != nil {
			logger.Error("Invalid Redis configuration", "error", optsErr)
			os.Exit(1)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()

		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			logger.Error("Unable to ping Redis", "error", pingErr)
			os.Exit(1)
		}
		locker = keylock.NewRedisLocker(rdb, "gembid:listing-lock:", cfg.LockTTL)
		logger.Info("Redis Connected", "lock_backend", cfg.LockBackend)
	}

	// 4. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockWait)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	notificationRepo := database.NewPostgresNotificationRepository(pool)

	// 5. Initialize Services (Domain Layer)
	withdrawPolicy, err := cfg.WithdrawPolicy()
	if err != nil {
		logger.Error("Invalid withdraw policy", "error", err)
		os.Exit(1)
	}
	listingService := listings.NewService(database.NewPostgresListingRepository(pool))
	ledger := bids.NewLedger(txManager, bidRepo, outboxRepo, listingService, locker, bids.LedgerConfig{
		LockWait:       cfg.LedgerWait,
		WithdrawPolicy: withdrawPolicy,
	})
	queries := bids.NewQueryService(bidRepo)
	// The API only serves read state; events are dispatched by the worker
	dispatcher := notifications.NewDispatcher(notificationRepo, notifications.NewLogSink(logger), logger, notifications.DispatcherConfig{})

	// 6. Initialize API Handlers (ConnectRPC)
	interceptors := connect.WithInterceptors(auth.NewAuthInterceptor(verifier))

	mux := http.NewServeMux()
	mux.Handle(api.NewListingServiceHandler(api.NewListingHandler(listingService, logger), interceptors))
	mux.Handle(api.NewBidServiceHandler(api.NewBidHandler(ledger, queries, logger), interceptors))
	mux.Handle(api.NewNotificationServiceHandler(api.NewNotificationHandler(dispatcher, logger), interceptors))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// 7. Start Server
	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Bid Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("API stopped")
}
