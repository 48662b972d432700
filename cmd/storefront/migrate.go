package main

import (
	"fmt"

	"github.com/fjod/slime-shop/internal/catalog"
	"github.com/fjod/slime-shop/internal/config"
	"github.com/spf13/cobra"
)

func migrateCmd(load func() *config.Config) *cobra.Command {
	var dbPath, migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if dbPath != "" {
				cfg.CatalogDBPath = dbPath
			}
			if migrationsPath != "" {
				cfg.MigrationsPath = migrationsPath
			}

			repo, err := catalog.NewSQLiteRepository(cfg.CatalogDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.RunMigrations(cfg.MigrationsPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog migrated: %s\n", cfg.CatalogDBPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path; overrides CATALOG_DB_PATH")
	cmd.Flags().StringVar(&migrationsPath, "migrations", "", "Migrations directory; overrides MIGRATIONS_PATH")
	return cmd
}
