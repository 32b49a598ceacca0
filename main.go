// main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"vehicle-rental/cmd"
	"vehicle-rental/internal/catalog"
	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/events"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"
	"vehicle-rental/internal/scheduler"
	"vehicle-rental/internal/wire"
	"vehicle-rental/pkg/cache"
	"vehicle-rental/pkg/database"
	"vehicle-rental/pkg/telemetry"
	"vehicle-rental/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := telemetry.Setup(ctx, config.App.Name, config.Telemetry.Endpoint)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Redis is optional: without it the market cache is bypassed and
	// scheduler leases are not taken.
	var redisClient *redis.Client
	if config.Redis.URL != "" {
		redisClient, err = cache.Connect(ctx, config.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected successfully")
	}

	// Notifications go to RabbitMQ when configured, otherwise to the log.
	var notifier notify.Dispatcher = notify.NewLogDispatcher(logger)
	if config.Rabbit.URL != "" {
		amqpDispatcher, err := notify.NewAMQPDispatcher(config.Rabbit.URL, config.Rabbit.Exchange, logger)
		if err != nil {
			logger.Fatal("Failed to connect to rabbitmq", zap.Error(err))
		}
		defer amqpDispatcher.Close()
		notifier = amqpDispatcher
	}

	// Payment gateway
	omiseClient, err := gateway.NewOmiseClient(config.Gateway.PublicKey, config.Gateway.SecretKey)
	if err != nil {
		logger.Fatal("Failed to init payment gateway", zap.Error(err))
	}
	gw := gateway.WithTracing(gateway.NewOmiseGateway(omiseClient, config.Gateway.WebhookSecret, logger))

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, wire.Ports{
		Gateway:  gw,
		Catalog:  catalog.NewCatalog(db, redisClient, logger),
		Notifier: notifier,
	}, config, logger)

	g, ctx := errgroup.WithContext(ctx)

	// Start server
	g.Go(func() error {
		return cmd.APIServer(ctx, app.Router, config.App.Port, logger)
	})

	// Start scheduler
	if config.Scheduler.Enabled {
		var relay *scheduler.TimelineRelay
		if len(config.Kafka.Brokers) > 0 {
			publisher, err := events.NewKafkaPublisher(config.Kafka.Brokers, config.Kafka.TimelineTopic)
			if err != nil {
				logger.Fatal("Failed to init kafka publisher", zap.Error(err))
			}
			defer publisher.Close()
			relay = scheduler.NewTimelineRelay(repos.Timeline, repos.Relay, publisher, logger)
		}

		var locker scheduler.Locker
		if redisClient != nil {
			locker = cache.NewLease(redisClient, "vehicle-rental:lease:")
		}

		runner := scheduler.NewRunner(locker, logger)
		runner.Register(scheduler.Jobs(app.Service, relay, config.Scheduler, logger)...)
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}
