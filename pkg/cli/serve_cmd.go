package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"geoadmin-control/internal/api"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/scheduler"
	"geoadmin-control/internal/service/bodsync"
	"geoadmin-control/internal/service/catalog"
	"geoadmin-control/internal/service/stacsync"
	"geoadmin-control/internal/service/usersync"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog API and run scheduled syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer a.close()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := a.openDB(); err != nil {
		return err
	}

	var dir domain.Directory
	if a.cfg.Cognito.UserPoolID != "" {
		var err error
		if dir, err = a.deps.NewDirectory(a.cfg.Cognito); err != nil {
			return err
		}
	} else {
		a.logger.Warn("COGNITO_USER_POOL_ID not set, user writes are disabled")
	}
	users := usersync.NewUsers(a.writeDB, dir, a.logger)

	sched := scheduler.New(a.logger)
	sched.Add(a.scheduledTasks()...)
	sched.Start()
	defer sched.Stop()

	handler := api.NewHandler(catalog.New(a.readDB), users, a.metrics.Handler(), a.logger)
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           api.NewRouter(handler, api.RouterOptions{CORSAllowedOrigins: a.cfg.CORSAllowedOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP API listening", "addr", a.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scheduledTasks returns the configured periodic syncs. Scheduled BOD runs
// reconcile every entity type; no scheduled run clears.
func (a *app) scheduledTasks() []scheduler.Task {
	return []scheduler.Task{
		{
			Name:     bodsync.Job,
			Schedule: a.cfg.Schedule.BODSync,
			Run: func(ctx context.Context) error {
				opts := bodsync.Options{Providers: true, Attributions: true, Datasets: true}
				return a.runBODSync(ctx, opts, logWriter(a.logger, bodsync.Job), false)
			},
		},
		{
			Name:     stacsync.Job,
			Schedule: a.cfg.Schedule.STACSync,
			Run: func(ctx context.Context) error {
				opts := stacsync.Options{Threshold: a.cfg.STAC.Similarity}
				return a.runSTACSync(ctx, opts, logWriter(a.logger, stacsync.Job), false)
			},
		},
		{
			Name:     usersync.Job,
			Schedule: a.cfg.Schedule.CognitoSync,
			Run: func(ctx context.Context) error {
				return a.runCognitoSync(ctx, usersync.Options{}, logWriter(a.logger, usersync.Job), false)
			},
		},
	}
}

// lineLogger turns the report lines of a scheduled run into log records.
type lineLogger struct {
	logger *slog.Logger
}

func logWriter(logger *slog.Logger, job string) lineLogger {
	return lineLogger{logger: logger.With("job", job)}
}

// Warning lines are skipped; the sync output already logs them.
func (l lineLogger) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) > 0 && !bytes.HasPrefix(line, []byte("WARNING: ")) {
			l.logger.Info(string(line))
		}
	}
	return len(p), nil
}
