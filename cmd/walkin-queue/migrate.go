package main

import (
	"context"
	"fmt"
	"time"

	"qms/walkin-queue/internal/config"
	"qms/walkin-queue/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

func init() {
	for _, command := range []struct {
		name  string
		short string
	}{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print the migration status"},
	} {
		name := command.name
		migrateCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: command.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), name)
			},
		})
	}
}

func runMigrate(ctx context.Context, command string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("migrate: STORE_BACKEND is %q; migrations only apply to %s", cfg.StoreBackend, config.BackendPostgres)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, cfg.DatabaseURL, command); err != nil {
		return err
	}
	logger.Info("migrate finished", "command", command)
	return nil
}
