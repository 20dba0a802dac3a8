package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/ordermanagement/internal/cache"
	"github.com/fjod/ordermanagement/internal/cart"
	"github.com/fjod/ordermanagement/internal/checkout"
	ordergrpc "github.com/fjod/ordermanagement/internal/grpc"
	h "github.com/fjod/ordermanagement/internal/http"
	"github.com/fjod/ordermanagement/internal/inventory"
	"github.com/fjod/ordermanagement/internal/metrics"
	"github.com/fjod/ordermanagement/internal/orders"
	"github.com/fjod/ordermanagement/internal/projection"
	"github.com/fjod/ordermanagement/internal/publisher"
	"github.com/fjod/ordermanagement/internal/repository"
	"github.com/fjod/ordermanagement/internal/seed"
	"github.com/fjod/ordermanagement/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	LogLevel        string
	Store           string
	DB              repository.Credentials
	RedisAddr       string
	KafkaBrokers    []string
	MongoURI        string
	MongoDatabase   string
	SeedFile        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50057"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Store:    getEnv("STORE", "postgres"),
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "ecommerce"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDatabase:   getEnv("MONGO_DB", "orders"),
		SeedFile:        getEnv("SEED_FILE", ""),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return nil, fmt.Errorf("invalid STORE %q: want postgres or memory", cfg.Store)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// a missing .env is fine; the environment wins over it
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel)))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if err := run(cfg); err != nil {
		slog.Error("order-service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	slog.Info("order-service starting", "store", cfg.Store)
	ctx := context.Background()
	var wg sync.WaitGroup

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.SeedFile != "" {
		catalog, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, store, catalog); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cartCache, redisClient := openCache(ctx, cfg)
	carts := cart.NewService(store, inventory.NewLedger(m), cartCache)
	checkouts := checkout.NewService(store, carts, m)
	lifecycle := orders.NewLifecycle(store, m)

	workersCtx, workersCancel := context.WithCancel(ctx)
	defer workersCancel()

	var poller *publisher.OutboxPoller
	var historyConsumer *projection.Consumer
	var history h.HistoryReader
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(store, publisher.NewWriter(cfg.KafkaBrokers...), m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(workersCtx)
		}()
		slog.Info("outbox publisher started", "brokers", cfg.KafkaBrokers, "topic", publisher.Topic)

		if cfg.MongoURI != "" {
			projStore, err := openProjection(ctx, cfg)
			if err != nil {
				return err
			}
			defer projStore.Disconnect(context.Background())
			history = projStore

			historyConsumer = projection.NewConsumer(projStore, cfg.KafkaBrokers...)
			wg.Add(1)
			go func() {
				defer wg.Done()
				historyConsumer.Run(workersCtx)
			}()
			slog.Info("order history projection started", "group", projection.GroupID)
		}
	}

	router := h.NewRouter(h.RouterConfig{
		Cart:           h.NewCartHandler(carts, cfg.RequestTimeout),
		Checkout:       h.NewCheckoutHandler(checkouts, cfg.RequestTimeout),
		Orders:         h.NewOrdersHandler(lifecycle, history, cfg.RequestTimeout),
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "order-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer, healthServer := ordergrpc.NewServer(ordergrpc.NewOrderManagementService(carts, checkouts, lifecycle))

	serveErr := make(chan error, 2)
	go func() {
		slog.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		slog.Info("grpc server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		slog.Error("server stopped unexpectedly", "error", err)
	}

	slog.Info("shutting down order-service...")
	healthServer.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	workersCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()
	select {
	case <-doneChan:
		slog.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		slog.Warn("background workers didn't stop in time")
	}

	if poller != nil {
		if err := poller.Close(); err != nil {
			slog.Error("failed to close kafka writer", "error", err)
		}
	}
	if historyConsumer != nil {
		historyConsumer.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	slog.Info("order-service stopped")
	return nil
}

func openStore(cfg *Config) (repository.Store, error) {
	if cfg.Store == "memory" {
		slog.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.RunMigrations(&cfg.DB); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations completed")
	return repo, nil
}

// openCache falls back to no caching when Redis is not configured or not reachable.
// The returned client is nil in that case.
func openCache(ctx context.Context, cfg *Config) (cache.CartCache, *redis.Client) {
	if cfg.RedisAddr == "" {
		return cache.NoopCache{}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, cart cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return cache.NoopCache{}, nil
	}
	slog.Info("cart cache connected", "addr", cfg.RedisAddr)
	return cache.NewRedisCache(client), client
}

func openProjection(ctx context.Context, cfg *Config) (*projection.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := projection.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	store := projection.NewStore(db)
	if err := store.CreateIndexes(connectCtx); err != nil {
		return nil, err
	}
	return store, nil
}
