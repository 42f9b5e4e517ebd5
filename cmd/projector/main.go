package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/furniture-market/internal/config"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/event"
	"github.com/example/furniture-market/internal/infrastructure/cache"
	"github.com/example/furniture-market/internal/infrastructure/kafka"
	"github.com/example/furniture-market/internal/infrastructure/store"
	"github.com/example/furniture-market/internal/projection"
	"github.com/redis/go-redis/v9"
)

// cacheInvalidator drops cached cart views without pulling in the full
// query side.
type cacheInvalidator struct {
	cache cache.CartCache
}

func (c cacheInvalidator) Invalidate(ctx context.Context, userID string) {
	if err := c.cache.Delete(ctx, userID); err != nil {
		log.Printf("[Projector] Cache invalidate for %s failed: %v", userID, err)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Projector] %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("[Projector] KAFKA_BROKERS environment variable is required")
	}

	log.Println("[Projector] ========================================")
	log.Println("[Projector] Furniture Market - Cart Projector")
	log.Println("[Projector] ========================================")
	log.Printf("[Projector] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Projector] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Projector] Group: %s", cfg.KafkaConsumerGroup)

	cartRepo, closeCarts, err := store.OpenCartRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("[Projector] Failed to open cart store: %v", err)
	}
	defer closeCarts()

	var cartCache cache.CartCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		cartCache = cache.NewRedisCache(rdb)
	}

	// CartCheckedOut from a checkout is published like any other cart change
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	var publisher event.Publisher = producer

	rule := cart.ShippingRule{FreeThreshold: cfg.FreeShippingThreshold, FlatFee: cfg.FlatShippingFee}
	cartSvc := cart.NewService(cartRepo, publisher, rule)
	projector := projection.NewProjector(cartSvc, cacheInvalidator{cache: cartCache})

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaConsumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Projector] Starting event consumer...")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
			log.Printf("[Projector] Consumer error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Projector] Shutting down...")
	cancel()
}
