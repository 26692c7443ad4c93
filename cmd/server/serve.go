package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/iliyamo/invoice-billing/internal/config"
	"github.com/iliyamo/invoice-billing/internal/database"
	"github.com/iliyamo/invoice-billing/internal/queue"
	"github.com/iliyamo/invoice-billing/internal/repository"
	"github.com/iliyamo/invoice-billing/internal/router"
	"github.com/iliyamo/invoice-billing/internal/service"
)

const (
	auditDirFlag    = "audit-log-dir"
	shutdownTimeout = 10 * time.Second
)

func serveFlags() map[string]cobraflags.Flag {
	flags := commonFlags()
	flags[auditDirFlag] = &cobraflags.StringFlag{
		Name:  auditDirFlag,
		Value: "logs",
		Usage: "Directory for the bulk import audit log written by the event consumer",
	}
	return flags
}

func newServeCommand() *cobra.Command {
	flags := serveFlags()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the schema and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func runServe(parent context.Context, flags map[string]cobraflags.Flag) error {
	cfg, db, err := bootstrap(flags)
	if err != nil {
		return err
	}
	defer closeDB(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		slog.Warn("redis unavailable; rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	deps := router.Deps{Config: cfg, DB: db, Redis: rdb}

	var wg sync.WaitGroup
	if cfg.RabbitMQURL != "" {
		deps.Events = queue.NewPublisher(cfg.RabbitMQURL)
		auditDir := flags[auditDirFlag].GetString()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartBulkImportConsumer(ctx, cfg.RabbitMQURL, auditDir); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("bulk import consumer stopped", "err", err)
			}
		}()
	} else {
		slog.Info("RABBITMQ_URL not set; bulk import events disabled")
	}

	if cfg.TokenCleanupInterval > 0 {
		auth := service.NewAuthService(repository.NewStore(db), cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth.RunTokenSweeper(ctx, cfg.TokenCleanupInterval)
		}()
	}

	e := router.New(deps)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		slog.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}
