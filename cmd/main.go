package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/shoe-shop/internal/metrics"
	"github.com/sakashimaa/shoe-shop/internal/repository"
	"github.com/sakashimaa/shoe-shop/internal/service"
	transport "github.com/sakashimaa/shoe-shop/internal/transport/http"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/handler"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/middleware"
	"github.com/sakashimaa/shoe-shop/internal/transport/http/response"
	"github.com/sakashimaa/shoe-shop/internal/transport/kafka"
	"github.com/sakashimaa/shoe-shop/pkg/config"
	"github.com/sakashimaa/shoe-shop/pkg/db"
	kafka2 "github.com/sakashimaa/shoe-shop/pkg/kafka"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/shoe-shop/pkg/outbox/repository"
	outboxUtils "github.com/sakashimaa/shoe-shop/pkg/outbox/utils"
	"github.com/sakashimaa/shoe-shop/pkg/outbox/worker"
	"github.com/sakashimaa/shoe-shop/pkg/utils"
	"go.uber.org/zap"
)

const serviceName = "shop-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, serviceName, cfg.Env)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   cfg.LogLevel,
		Env:     cfg.Env,
		Service: serviceName,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL, logger)
	if err != nil {
		logger.Fatal("failed to create pool", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, product cache will fall through", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)

	userService := service.NewUserService(userRepo, logger)
	productService := service.NewCachedProductService(
		service.NewProductService(productRepo, logger),
		redisClient,
		cfg.Redis.CacheTTL,
		logger,
	)
	cartService := service.NewCartService(pool, cartRepo, productRepo, appMetrics, logger)
	orderService := service.NewOrderService(pool, orderRepo, cartRepo, productRepo, outboxRepo, appMetrics, logger)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("error creating kafka producer", zap.Error(err))
	}
	producer := kafka2.NewBreakerProducer(kafkaProducer, utils.NewBreaker("kafka-producer", logger))

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		producer,
		logger,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithInterval(cfg.Outbox.Interval),
	)
	go outboxProcessor.Start(ctx)

	consumer := kafka.NewConsumer(
		userService,
		orderService,
		productService,
		func(ctx context.Context, eventID int64, action func(ctx context.Context) error) error {
			return outboxUtils.ProcessWithDeduplication(ctx, pool, logger, eventID, action)
		},
		logger,
	)
	go func() {
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID); err != nil {
			mylogger.Error(ctx, logger, "consumer stopped", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Port,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.Metrics.Port))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName: serviceName,
	})

	app.Use(recover.New())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewRequestIDMiddleware())
	app.Use(middleware.NewMetricsMiddleware(appMetrics))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.Error(c, fiber.StatusTooManyRequests, "Too many requests. Try again later.")
		},
	}))

	handlers := &transport.Handlers{
		Product: handler.NewProductHandler(productService, logger, cfg.HTTP.Timeout),
		Cart:    handler.NewCartHandler(cartService, logger, cfg.HTTP.Timeout),
		Order:   handler.NewOrderHandler(orderService, logger, cfg.HTTP.Timeout),
	}

	transport.RegisterRoutes(app, handlers, middleware.NewAuthMiddleware(userService, cfg.Auth.AccessSecret, logger))

	go func() {
		logger.Info("HTTP service listening", zap.String("addr", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("error listening on HTTP port", zap.String("addr", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down shop service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down metrics server", zap.Error(err))
	}

	if err := producer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error closing kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error closing redis", zap.Error(err))
	}

	pool.Close()
	mylogger.Info(shutdownCtx, logger, "Shop service stopped")
}
