package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/furniture-market/internal/api"
	"github.com/example/furniture-market/internal/auth"
	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/command"
	"github.com/example/furniture-market/internal/config"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/event"
	"github.com/example/furniture-market/internal/geocode"
	"github.com/example/furniture-market/internal/infrastructure/cache"
	"github.com/example/furniture-market/internal/infrastructure/kafka"
	"github.com/example/furniture-market/internal/infrastructure/store"
	"github.com/example/furniture-market/internal/query"
	"github.com/example/furniture-market/internal/shipping"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Furniture Market API")
	log.Println("[API] ========================================")
	log.Printf("[API] Cart store: %s", cfg.CartStore)
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)

	// Cart document store
	cartRepo, closeCarts, err := store.OpenCartRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("[API] Failed to open cart store: %v", err)
	}
	defer closeCarts()

	// Catalog and orders live in PostgreSQL
	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	if err := store.RunMigrations(db, cfg.MigrationsPath); err != nil {
		log.Fatalf("[API] Failed to run migrations: %v", err)
	}
	log.Println("[API] Connected to PostgreSQL")

	// Event bus
	var publisher event.Publisher = event.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	} else {
		log.Println("[API] KAFKA_BROKERS not set, events are not published")
	}

	// Shipping
	tiers := shipping.DefaultTierTable()
	if cfg.ShippingTiersFile != "" {
		tiers, err = shipping.LoadTierTable(cfg.ShippingTiersFile)
		if err != nil {
			log.Fatalf("[API] Failed to load shipping tiers: %v", err)
		}
		log.Printf("[API] Shipping tiers loaded from %s", cfg.ShippingTiersFile)
	}

	var geocoder shipping.Geocoder = geocode.NewClient(geocode.Config{
		BaseURL:   cfg.GeocoderURL,
		UserAgent: cfg.GeocoderUserAgent,
		Timeout:   cfg.GeocoderTimeout,
		Retries:   1,
	})

	// Redis backs the cart view cache and the geocode cache
	var cartCache cache.CartCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[API] Redis unavailable at %s, continuing degraded: %v", cfg.RedisAddr, err)
		}
		cartCache = cache.NewRedisCache(rdb)
		geocoder = geocode.NewCachedGeocoder(geocoder, rdb, geocode.DefaultCacheTTL)
	}

	// Domain services and handlers
	rule := cart.ShippingRule{FreeThreshold: cfg.FreeShippingThreshold, FlatFee: cfg.FlatShippingFee}
	cartSvc := cart.NewService(cartRepo, publisher, rule)
	orderSvc := order.NewService(store.NewPostgresOrderRepository(db), publisher)
	products := catalog.NewPostgresReader(db)
	quotes := shipping.NewQuoteService(geocoder, tiers)

	queryHandler := query.NewHandler(cartSvc, orderSvc, products, cartCache)
	cmdHandler := command.NewHandler(cartSvc, orderSvc, products, quotes, queryHandler, command.Options{
		AsyncCartClear: cfg.AsyncCartClear,
	})

	jwtService := auth.NewJWTService(cfg.JWTSecret, 15*time.Minute)
	router := api.NewRouter(api.RouterConfig{
		Handlers:       api.NewHandlers(cmdHandler, queryHandler),
		JWTService:     jwtService,
		RequestTimeout: cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}
