// Command storefront runs the slime shop cart and checkout API together with
// its order consumer and catalog migrations.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fjod/slime-shop/internal/config"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "storefront"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Slime shop storefront backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	load := func() *config.Config {
		cfg := config.LoadConfig()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg
	}

	cmd.AddCommand(
		serveCmd(load),
		ordersConsumerCmd(load),
		migrateCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}
