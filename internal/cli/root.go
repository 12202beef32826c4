// Package cli provides the command-line interface for jobhub.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jobhub/internal/app"
	"github.com/MrSnakeDoc/jobhub/internal/config"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/version"
)

var (
	// Global flags
	envFile string

	// Loaded once by the root pre-run
	cfg          *config.Config
	loggerClient logger.Logger
)

// rootCmd serves the API when called without any subcommand.
var rootCmd = &cobra.Command{
	Use:   "jobhub",
	Short: "Multi-provider job aggregation service",
	Long: `jobhub queries several job boards, merges their listings and keeps a
deduplicated copy in Postgres.

Without a subcommand it runs the HTTP API and the scheduled sweeps.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		cfg = config.Load()
		loggerClient = logger.New(cfg.LogLevel, cfg.PrettyLog)
		return nil
	},
	RunE: runServe,
}

// loadEnvFile reads KEY=VALUE pairs into the environment. Variables already
// set win, and a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// newApp wires the service for a command. The caller must Close it, Run does.
func newApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(providersCmd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
