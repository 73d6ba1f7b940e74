package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/koperasi-ledger/pkg/config"
)

var (
	version = "dev"

	cfg    *config.Config
	logger *slog.Logger
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "koperasi",
		Short: "Bulk transaction import for the koperasi ledger",
		Long: `koperasi imports spreadsheet batches of member transactions into the
savings and loan ledger, reconciling balances row by row.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	cmd.PersistentFlags().String("duplicate-policy", "", "duplicate handling (warn, block)")
	cmd.PersistentFlags().String("user", "", "operator recorded in import history")

	cmd.AddCommand(importCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the environment and applies flag overrides.
func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		loaded.Observability.LogLevel = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		loaded.Observability.LogFormat = v
	}
	if v, _ := flags.GetString("duplicate-policy"); v != "" {
		loaded.Import.DuplicatePolicy = v
	}
	if v, _ := flags.GetString("user"); v != "" {
		loaded.Import.User = v
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	l, err := setupLogging(loaded.Observability)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	cfg, logger = loaded, l
	slog.SetDefault(logger)
	return nil
}

func setupLogging(obs config.ObservabilityConfig) (*slog.Logger, error) {
	var level slog.Level
	switch obs.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", obs.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch obs.LogFormat {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", obs.LogFormat)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "koperasi", version)
		},
	}
}
