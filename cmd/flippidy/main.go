// Command flippidy runs the bazaar flipper and its control API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/app"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "flippidy",
		Short:         "Bazaar flip engine with a paper venue and a control API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the engine until interrupted",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEngine(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print the persisted profit ledger as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, logger, closeLog, err := loadConfig(configPath, os.Stderr)
				if err != nil {
					return err
				}
				defer closeLog()
				stats, err := app.LoadStats(cmd.Context(), cfg, logger)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Validate the configuration and print it with secrets masked",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, closeLog, err := loadConfig(configPath, os.Stderr)
				if err != nil {
					return err
				}
				defer closeLog()
				return printJSON(cmd, cfg.Redacted())
			},
		},
	)
	return root
}

// loadConfig loads and validates the configuration and builds the logger.
// Commands that print results log to stderr.
func loadConfig(path string, logOut io.Writer) (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog := app.NewLogger(cfg, logOut)
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

func runEngine(parent context.Context, configPath string) error {
	cfg, logger, closeLog, err := loadConfig(configPath, os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("flippidy starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("flippidy stopped")
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
