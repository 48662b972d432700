package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/slime-shop/internal/config"
	"github.com/fjod/slime-shop/internal/notify"
	"github.com/fjod/slime-shop/internal/orders"
	"github.com/fjod/slime-shop/internal/storage"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 10 * time.Second

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, func(), error) {
	switch cfg.StorageBackend {
	case "memory":
		log.Warn("cart storage is in memory; carts are lost on restart")
		return storage.NewMemoryStorage(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		st := storage.NewRedisStorage(client, cfg.CartTTL)

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

		return st, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func openOrders(ctx context.Context, cfg *config.Config, log *slog.Logger) (*orders.MongoRepository, func(), error) {
	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := orders.ConnectMongoDB(connCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, nil, err
	}
	repo := orders.NewMongoRepository(db)
	if err := repo.CreateIndexes(connCtx); err != nil {
		_ = db.Client().Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDBName)

	disconnect := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Client().Disconnect(ctx); err != nil {
			log.Error("mongo disconnect error", "error", err)
		}
	}
	return repo, disconnect, nil
}

// orderSink picks where checkout hands finished orders: straight into Mongo,
// or onto Kafka for the orders-consumer to store.
func orderSink(cfg *config.Config, repo *orders.MongoRepository, log *slog.Logger) (orders.Sink, func()) {
	if cfg.OrderSink == "kafka" {
		pub := orders.NewPublisher(cfg.OrdersTopic, brokers(cfg)...)
		log.Info("orders are published to kafka", "topic", cfg.OrdersTopic)
		return pub, func() {
			if err := pub.Close(); err != nil {
				log.Error("kafka writer close error", "error", err)
			}
		}
	}
	return repo, func() {}
}

func newMailer(cfg *config.Config, log *slog.Logger) notify.Mailer {
	if !cfg.EmailConfigured() {
		log.Warn("email provider not configured; notifications are only logged")
		return notify.LogMailer{Log: log}
	}
	client := notify.NewEmailJSClient(notify.EmailJSConfig{
		Endpoint:           cfg.EmailEndpoint,
		ServiceID:          cfg.EmailServiceID,
		UserID:             cfg.EmailUserID,
		AccessToken:        cfg.EmailAccessToken,
		BusinessTemplateID: cfg.BusinessTemplateID,
		CustomerTemplateID: cfg.CustomerTemplateID,
	}, nil)
	return notify.NewBreakerMailer(client, cfg.BreakerMaxFailures, cfg.BreakerOpenTimeout, log)
}

func brokers(cfg *config.Config) []string {
	var out []string
	for _, b := range strings.Split(cfg.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
