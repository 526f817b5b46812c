package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/gostore/marketplace/internal/api"
	"github.com/gostore/marketplace/internal/cart"
	"github.com/gostore/marketplace/internal/cart/cache"
	"github.com/gostore/marketplace/internal/cart/repository"
	"github.com/gostore/marketplace/internal/checkout"
	"github.com/gostore/marketplace/internal/coupon"
	"github.com/gostore/marketplace/internal/orders/publisher"
	"github.com/gostore/marketplace/internal/pricing"
	"github.com/gostore/marketplace/internal/store"
)

type Config struct {
	HTTPPort        string
	Mongo           repository.MongoConfig
	RedisAddr       string
	RedisPassword   string
	Postgres        store.Credentials
	KafkaBrokers    []string
	OrderTopic      string
	Pricing         pricing.Config
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		Mongo: repository.MongoConfig{
			URI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:    getEnv("MONGO_DB_NAME", "marketplace"),
			MaxPoolSize: uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 100)),
			MinPoolSize: uint64(getEnvInt("MONGO_MIN_POOL_SIZE", 10)),
		},
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		Postgres: store.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              getEnvInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "marketplace"),
			Password:          getEnv("POSTGRES_PASSWORD", "marketplace"),
			DBName:            getEnv("POSTGRES_DB", "marketplace"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OrderTopic:   getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		Pricing: pricing.Config{
			FreeShippingThreshold: getEnvDecimal("FREE_SHIPPING_THRESHOLD", "100"),
			FlatShippingFee:       getEnvDecimal("FLAT_SHIPPING_FEE", "10"),
			TaxRate:               getEnvDecimal("TAX_RATE", "0.10"),
		},
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func main() {
	cfg := loadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mongo holds the mutable carts
	mongoDB, err := repository.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	cartRepo := repository.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.Mongo.URI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	cartCache := cache.NewRedisCache(redisClient)

	// Postgres holds the catalog, promotions, orders, and the outbox
	pg, err := store.New(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pg.Close()
	if err := pg.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to Postgres at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)

	pricer := pricing.NewEngine(cfg.Pricing)
	evaluator := coupon.NewEvaluator(pg)
	cartService := cart.NewService(cartRepo, cartCache, pg, pricer, evaluator)
	checkoutService := checkout.NewService(cartService, pg)

	poller := publisher.NewOutboxPoller(pg, cfg.OrderTopic, cfg.KafkaBrokers...)
	go poller.Run(ctx)

	router := api.NewRouter(cartService, checkoutService, pg, cfg.RequestTimeout)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		log.Printf("Marketplace listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel() // stops the outbox poller

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if err := poller.Close(); err != nil {
		log.Printf("Kafka writer close error: %v", err)
	}
	if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
		log.Printf("Mongo disconnect error: %v", err)
	}
	log.Println("Marketplace stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Fatalf("invalid integer for %s: %q", key, value)
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("invalid decimal for %s: %q", key, value)
	}
	return d
}
