package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kimspro130/promode/internal/cart/cache"
	cartservice "github.com/kimspro130/promode/internal/cart/service"
	"github.com/kimspro130/promode/internal/cart/store"
	h "github.com/kimspro130/promode/internal/http"
	"github.com/kimspro130/promode/internal/order/domain"
	"github.com/kimspro130/promode/internal/order/repository"
	orderservice "github.com/kimspro130/promode/internal/order/service"
	"github.com/kimspro130/promode/internal/outbox"
	"github.com/kimspro130/promode/internal/payment"
	"github.com/kimspro130/promode/internal/payment/pesapal"
	"github.com/kimspro130/promode/pkg/metrics"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	MigrationsPath string

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string
	CartCacheTTL  time.Duration

	KafkaBrokers string

	PesapalConsumerKey    string
	PesapalConsumerSecret string
	PesapalEnvironment    string
	PesapalIPNID          string

	APIBaseURL string // where the gateway reaches this service
	AppBaseURL string // storefront origin for post-payment redirects

	Pricing  domain.Pricing
	Currency string
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         dbPort,
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "promode"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/order/repository/migrations"),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "promode"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CartCacheTTL:  getEnvDuration("CART_CACHE_TTL", 15*time.Minute),

		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),

		PesapalConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
		PesapalConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
		PesapalEnvironment:    getEnv("PESAPAL_ENVIRONMENT", "sandbox"),
		PesapalIPNID:          getEnv("PESAPAL_IPN_ID", ""),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),

		Pricing: domain.Pricing{
			TaxRate:               getEnvFloat("TAX_RATE", 0.10),
			FreeShippingThreshold: getEnvFloat("FREE_SHIPPING_THRESHOLD", 150000),
			FlatShippingFee:       getEnvFloat("FLAT_SHIPPING_FEE", 10000),
		},
		Currency: getEnv("CURRENCY", "UGX"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return f
}

func main() {
	log.Println("promode-server starting...")
	cfg := loadConfig()
	ctx := context.Background()
	var wg sync.WaitGroup

	// Postgres: orders, order items, outbox
	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Mongo: carts for signed-in users
	cartStore, err := store.NewMongoStore(ctx, store.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cartStore.Close(ctx)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Redis: guest carts and the cart cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	userCarts := cartservice.NewCartService(cartStore, cache.NewRedisCache(redisClient, cfg.CartCacheTTL))
	guestCarts := cartservice.NewCartService(store.NewRedisStore(redisClient), nil)

	orders := orderservice.NewOrderService(repo, cfg.Pricing, cfg.Currency, userCarts)

	// Pesapal hosted checkout
	gateway := pesapal.NewClient(pesapal.Config{
		ConsumerKey:    cfg.PesapalConsumerKey,
		ConsumerSecret: cfg.PesapalConsumerSecret,
		Environment:    pesapal.Environment(cfg.PesapalEnvironment),
	})

	callbackURL := cfg.APIBaseURL + "/api/v1/payments/pesapal/callback"
	ipnID := cfg.PesapalIPNID
	if ipnID == "" && cfg.PesapalConsumerKey != "" {
		ipnID, err = gateway.RegisterIPN(ctx, callbackURL)
		if err != nil {
			log.Fatalf("Failed to register IPN endpoint: %v", err)
		}
		log.Printf("Registered Pesapal IPN endpoint, id=%s", ipnID)
	}

	callbacks := payment.NewCallbackService(gateway, repo)

	// Outbox poller: order events to Kafka
	poller := outbox.NewPoller(repo, strings.Split(cfg.KafkaBrokers, ",")...)
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	m := metrics.NewServerMetrics("api")

	cartHandler := h.NewCartHandler(userCarts, guestCarts, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(orders, m, cfg.RequestTimeout)
	paymentsHandler := h.NewPaymentsHandler(gateway, callbacks, m, callbackURL, ipnID, cfg.AppBaseURL, cfg.RequestTimeout)

	router := h.NewRouter(cartHandler, ordersHandler, paymentsHandler, m, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("promode-server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	pollerCancel()
	wg.Wait()
	if err := poller.Close(); err != nil {
		log.Printf("failed to close outbox publisher: %v", err)
	}

	log.Println("server exited")
}
