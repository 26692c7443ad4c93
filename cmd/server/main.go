// Command billingd runs the invoice billing API and its maintenance tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/database"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("billingd failed", "err", err)
		os.Exit(1)
	}
}

const envFileFlag = "env-file"

// commonFlags returns the flags every command accepts.  Each command gets its
// own map so values never leak between commands.
func commonFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		envFileFlag: &cobraflags.StringFlag{
			Name:  envFileFlag,
			Value: ".env",
			Usage: "Optional dotenv file loaded before reading the environment",
		},
	}
}

func newRootCommand() *cobra.Command {
	flags := serveFlags()
	root := &cobra.Command{
		Use:   "billingd",
		Short: "Invoice billing API server",
		Long: `billingd serves the invoice billing HTTP API.

Without a subcommand it behaves like "billingd serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	cobraflags.RegisterMap(root, flags)

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newCleanupTokensCommand(),
		newCreateAdminCommand(),
	)
	return root
}

// bootstrap loads configuration, installs the default logger and opens the
// database.
func bootstrap(flags map[string]cobraflags.Flag) (config.Config, *gorm.DB, error) {
	cfg, err := config.Load(flags[envFileFlag].GetString())
	if err != nil {
		return config.Config{}, nil, err
	}
	setupLogger(cfg)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

// setupLogger installs a text handler in development and JSON elsewhere.
func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
