package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/koperasi-ledger/pkg/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Long:      `Apply, roll back one step, or report the ledger schema migrations. Defaults to up.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE:      runMigrate,
	}
}

func runMigrate(_ *cobra.Command, args []string) error {
	command := "up"
	if len(args) == 1 {
		command = args[0]
	}

	logger.Info("starting database migration",
		slog.String("command", command),
		slog.String("database", cfg.Database.Database))

	database, err := db.New(db.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: 2,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	return database.Migrate(command)
}
