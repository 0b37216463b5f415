package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"geoadmin-control/internal/bod"
	"geoadmin-control/internal/cognito"
	"geoadmin-control/internal/config"
	internaldb "geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/metrics"
	"geoadmin-control/internal/reconcile"
	"geoadmin-control/internal/service/bodsync"
	"geoadmin-control/internal/service/stacsync"
	"geoadmin-control/internal/stac"
)

// BODSource is a BOD reader that holds a connection.
type BODSource interface {
	bodsync.Source
	io.Closer
}

// Deps are the external systems the commands talk to. Tests replace them
// with fakes.
type Deps struct {
	OpenBOD      func(ctx context.Context, cfg config.BODConfig) (BODSource, error)
	NewSTAC      func(cfg config.STACConfig, logger *slog.Logger) (stacsync.Source, error)
	NewDirectory func(cfg config.CognitoConfig) (domain.Directory, error)
	// Confirm asks the operator a yes/no question.
	Confirm func(prompt string) bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// DefaultDeps connects to the real systems.
func DefaultDeps() Deps {
	return Deps{
		OpenBOD: func(ctx context.Context, cfg config.BODConfig) (BODSource, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return bod.Open(ctx, cfg.DSN, cfg.Schema)
		},
		NewSTAC: func(cfg config.STACConfig, logger *slog.Logger) (stacsync.Source, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return stac.New(stac.Options{
				BaseURL:   cfg.URL,
				RateLimit: cfg.RateLimit,
				Timeout:   cfg.Timeout,
				Logger:    logger,
			})
		},
		NewDirectory: func(cfg config.CognitoConfig) (domain.Directory, error) {
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cognito.New(cognito.Config{
				UserPoolID:  cfg.UserPoolID,
				Region:      cfg.Region,
				Endpoint:    cfg.Endpoint,
				KeyID:       cfg.KeyID,
				Secret:      cfg.Secret,
				ManagedFlag: cfg.ManagedFlag,
			}), nil
		},
		Confirm: terminalConfirm(os.Stdin, os.Stderr),
	}
}

// terminalConfirm prompts on an interactive terminal and accepts only the
// literal answer "yes". Without a terminal the question is declined.
func terminalConfirm(in *os.File, out io.Writer) func(string) bool {
	return func(prompt string) bool {
		if !term.IsTerminal(int(in.Fd())) { //nolint:gosec // file descriptors fit in int
			_, _ = fmt.Fprintln(out, "stdin is not a terminal, declining")
			return false
		}
		_, _ = fmt.Fprint(out, prompt)
		answer, err := bufio.NewReader(in).ReadString('\n')
		return err == nil && strings.TrimSpace(answer) == "yes"
	}
}

// app is the state shared by the commands of one invocation.
type app struct {
	deps    Deps
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder
	writeDB *sql.DB
	readDB  *sql.DB
}

func (a *app) init(cmd *cobra.Command, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		a.logger.Warn(w)
	}
	a.metrics = metrics.NewRecorder()
	return nil
}

// openDB opens the catalog and brings its schema up to date.
func (a *app) openDB() error {
	if a.writeDB != nil {
		return nil
	}
	writeDB, readDB, err := internaldb.OpenSQLitePair(a.cfg.MetaDBPath, 4)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return fmt.Errorf("migrate catalog: %w", err)
	}
	a.writeDB, a.readDB = writeDB, readDB
	return nil
}

func (a *app) close() {
	if a.readDB != nil {
		_ = a.readDB.Close()
	}
	if a.writeDB != nil {
		_ = a.writeDB.Close()
	}
	a.writeDB, a.readDB = nil, nil
}

// record stores the metrics of a finished run and, for batch invocations,
// writes them to the configured textfile.
func (a *app) record(job string, dryRun bool, start time.Time, counter *reconcile.Counter, err error, textfile bool) {
	a.metrics.RecordRun(job, counter, metrics.Outcome(err, dryRun), time.Since(start))
	if !textfile || a.cfg.MetricsTextfile == "" {
		return
	}
	if werr := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); werr != nil {
		a.logger.Warn("could not write metrics textfile", "path", a.cfg.MetricsTextfile, "error", werr)
	}
}
