package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/slime-shop/internal/cart"
	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/checkout"
	"github.com/fjod/slime-shop/internal/config"
	apihttp "github.com/fjod/slime-shop/internal/http"
	"github.com/fjod/slime-shop/internal/logger"
	"github.com/fjod/slime-shop/internal/metrics"
	"github.com/spf13/cobra"
)

func serveCmd(load func() *config.Config) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cart and checkout HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if port != "" {
				cfg.HTTPPort = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP port; overrides HTTP_PORT")
	return cmd
}

func runServe(cfg *config.Config) error {
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	products, err := catalog.NewSQLiteRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	log.Info("catalog ready", "path", cfg.CatalogDBPath)

	repo, disconnect, err := openOrders(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer disconnect()

	sink, closeSink := orderSink(cfg, repo, log)
	defer closeSink()

	var registry *cart.Registry
	m := metrics.New(func() float64 { return float64(registry.Len()) })
	registry = cart.NewRegistry(st, cfg.CartIdleTTL, log, cart.WithEventHook(m.CartMutation))
	defer registry.Close()
	go registry.Run(ctx)

	orch := checkout.NewOrchestrator(newMailer(cfg, log), sink, checkout.Settings{
		BusinessEmail: cfg.BusinessEmail,
		StoreName:     cfg.StoreName,
		StepTimeout:   cfg.CheckoutStepTimeout,
	}, log, checkout.WithRecorder(m))

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Carts:           registry,
		Catalog:         products,
		Checkout:        orch,
		Orders:          repo,
		Metrics:         m.Handler(),
		Log:             log,
		AdminToken:      cfg.AdminToken,
		RequestTimeout:  cfg.RequestTimeout,
		CheckoutTimeout: cfg.CheckoutTimeout(),
		SecureCookies:   cfg.SecureCookies,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "storage", cfg.StorageBackend, "order_sink", cfg.OrderSink)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
