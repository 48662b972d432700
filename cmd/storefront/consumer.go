package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/slime-shop/internal/config"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/orders"
	"github.com/spf13/cobra"
)

func ordersConsumerCmd(load func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "orders-consumer",
		Short: "Store orders published to Kafka in MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersConsumer(load())
		},
	}
}

func runOrdersConsumer(cfg *config.Config) error {
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, disconnect, err := openOrders(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer disconnect()

	c := orders.NewConsumer(repo, log, cfg.OrdersTopic, brokers(cfg)...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	log.Info("orders consumer started", "topic", cfg.OrdersTopic, "group", orders.ConsumerGroup)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orders consumer...")
	cancel()
	<-done
	c.Close()
	log.Info("orders consumer stopped")
	return nil
}
