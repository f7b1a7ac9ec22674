package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	pkgdb "github.com/floroz/gembid/pkg/database"
	"github.com/floroz/gembid/pkg/telemetry"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/database"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/delivery"
	"github.com/floroz/gembid/services/bid-service/internal/adapters/events"
	"github.com/floroz/gembid/services/bid-service/internal/config"
	"github.com/floroz/gembid/services/bid-service/internal/domain/listings"
	"github.com/floroz/gembid/services/bid-service/internal/domain/notifications"
	"github.com/floroz/gembid/services/bid-service/migrations"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err == nil {
		err = cfg.RequireWorker()
	}
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "bid-service-worker", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	// 1. Apply migrations, then open the pool
	if err := pkgdb.Migrate(cfg.DatabaseURL, migrations.FS); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")

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

	// 2. Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	// 3. Delivery sinks. Logging is always on; the rest are enabled by configuration.
	sinks := notifications.MultiSink{notifications.NewLogSink(logger)}

	if cfg.RedisURL != "" {
		redisOpts, optsErr := cfg.RedisOptions()
		if optsErr != nil {
			logger.Error("Invalid Redis configuration", "error", optsErr)
			os.Exit(1)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		sinks = append(sinks, delivery.NewRedisSink(rdb, cfg.RedisSinkPrefix))
		logger.Info("Redis sink enabled", "prefix", cfg.RedisSinkPrefix)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := delivery.NewKafkaSink(delivery.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("Kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.NATSURL != "" {
		nc, natsErr := nats.Connect(cfg.NATSURL, nats.Name("bid-service-worker"))
		if natsErr != nil {
			logger.Error("Failed to connect to NATS", "error", natsErr)
			os.Exit(1)
		}
		defer nc.Close()
		sinks = append(sinks, delivery.NewNATSSink(nc, ""))
		logger.Info("NATS sink enabled")
	}

	// 4. Initialize Producer and Consumers
	producer, err := events.NewBidEventsProducer(pool, amqpConn, events.ProducerConfig{
		Exchange:    cfg.Exchange,
		BatchSize:   cfg.OutboxBatchSize,
		Interval:    cfg.OutboxInterval,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}, logger)
	if err != nil {
		logger.Error("Failed to create producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	dispatcher := notifications.NewDispatcher(
		database.NewPostgresNotificationRepository(pool),
		sinks,
		logger,
		notifications.DispatcherConfig{},
	)
	listingService := listings.NewService(database.NewPostgresListingRepository(pool))

	notificationConsumer := events.NewNotificationConsumer(amqpConn, cfg.Exchange, dispatcher, logger)
	closerConsumer := events.NewListingCloserConsumer(amqpConn, cfg.Exchange, listingService, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Bid Events Producer...")
		return producer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting notification consumer...", "queue", events.NotificationsQueue)
		return notificationConsumer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting listing closer...", "queue", events.ListingCloserQueue)
		return closerConsumer.Run(gctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
