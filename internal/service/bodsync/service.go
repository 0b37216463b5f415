// Package bodsync reconciles providers, attributions and datasets against the
// legacy BOD database.
package bodsync

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"time"

	"geoadmin-control/internal/bod"
	"geoadmin-control/internal/db"
	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/reconcile"
)

// Job is the name of the job in logs and metrics.
const Job = "bod-sync"

// Source is the read-only view of the BOD used by the sync.
type Source interface {
	Organisations(ctx context.Context) ([]bod.Organisation, error)
	Datasets(ctx context.Context) ([]bod.Dataset, error)
	GeocatPublication(ctx context.Context, id string) (*bod.GeocatPublication, bool, error)
	Translation(ctx context.Context, msgID string) (*bod.Translation, bool, error)
}

// Options select the entity types to reconcile and how.
type Options struct {
	Providers    bool
	Attributions bool
	Datasets     bool

	Clear  bool
	DryRun bool
	// StrictMetadata skips datasets that have neither a geocat publication
	// nor a translation instead of importing placeholder titles.
	StrictMetadata bool
}

// Selected reports whether at least one entity type was requested.
func (o Options) Selected() bool {
	return o.Providers || o.Attributions || o.Datasets
}

// Service runs the BOD reconciliation.
type Service struct {
	db     *sql.DB
	source Source
	logger *slog.Logger
}

// New creates a Service writing to db and reading from source.
func New(db *sql.DB, source Source, logger *slog.Logger) *Service {
	return &Service{db: db, source: source, logger: logger.With("component", Job)}
}

// Run reconciles the selected entity types in dependency order inside one
// transaction and writes change lines and the final report to w. A dry run
// rolls the transaction back after reporting.
func (s *Service) Run(ctx context.Context, opts Options, w io.Writer) (*reconcile.Counter, error) {
	out := reconcile.NewOutput(w, s.logger)
	counter := reconcile.NewCounter()
	if !opts.Selected() {
		out.Printf("no option provided, nothing changed")
		return counter, nil
	}

	start := time.Now()
	s.logger.Info("sync started", "dry_run", opts.DryRun, "clear", opts.Clear)

	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) (bool, error) {
		r := newRun(tx, s.source, opts)
		driverOpts := reconcile.Options{Clear: opts.Clear}

		if opts.Providers {
			if err := reconcile.Run(ctx, r.providerJob(), driverOpts, counter, out); err != nil {
				return false, err
			}
		}
		if opts.Attributions {
			if err := reconcile.Run(ctx, r.attributionJob(), driverOpts, counter, out); err != nil {
				return false, err
			}
		}
		if opts.Datasets {
			if err := reconcile.Run(ctx, r.datasetJob(), driverOpts, counter, out); err != nil {
				return false, err
			}
		}

		out.Report(counter)
		if opts.DryRun {
			out.Printf("dry run, aborting transaction")
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		s.logger.Error("sync failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.logger.Info("sync finished", "dry_run", opts.DryRun, "duration", time.Since(start))
	return counter, nil
}

// run holds the repositories of one transaction.
type run struct {
	source       Source
	opts         Options
	providers    *repository.ProviderRepo
	attributions *repository.AttributionRepo
	datasets     *repository.DatasetRepo
}

func newRun(tx *sql.Tx, source Source, opts Options) *run {
	return &run{
		source:       source,
		opts:         opts,
		providers:    repository.NewProviderRepo(tx),
		attributions: repository.NewAttributionRepo(tx),
		datasets:     repository.NewDatasetRepo(tx),
	}
}
