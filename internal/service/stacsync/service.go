// Package stacsync reconciles STAC-managed package distributions against the
// collections of a STAC catalog and reports provider name drift.
package stacsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/reconcile"
	"geoadmin-control/internal/stac"
)

// Job is the name of the job in logs and metrics.
const Job = "stac-sync"

// DefaultThreshold only accepts provider names that match exactly.
const DefaultThreshold = 1.0

// Source lists the catalog collections.
type Source interface {
	Collections(ctx context.Context) ([]stac.Collection, error)
}

// Options control a run.
type Options struct {
	Clear  bool
	DryRun bool
	// Threshold is the minimal similarity in [0,1] between a declared
	// provider name and the local provider names below which drift is
	// reported.
	Threshold float64
}

// Service runs the STAC reconciliation.
type Service struct {
	db     *sql.DB
	source Source
	logger *slog.Logger
}

// New creates a Service.
func New(db *sql.DB, source Source, logger *slog.Logger) *Service {
	return &Service{db: db, source: source, logger: logger.With("component", Job)}
}

// collectionRow is a collection with its resolved dataset.
type collectionRow struct {
	col           stac.Collection
	datasetID     string
	providerNames []string
}

// Run upserts a managed distribution per collection that matches a dataset,
// removes managed distributions whose collection disappeared, and writes
// drift warnings and the report to w.
func (s *Service) Run(ctx context.Context, opts Options, w io.Writer) (*reconcile.Counter, error) {
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, domain.ErrValidation("similarity threshold must be within [0,1], got %v", opts.Threshold)
	}
	out := reconcile.NewOutput(w, s.logger)
	counter := reconcile.NewCounter()
	start := time.Now()
	s.logger.Info("sync started", "dry_run", opts.DryRun, "clear", opts.Clear)

	err := db.RunInTx(ctx, s.db, func(tx *sql.Tx) (bool, error) {
		job := s.job(tx, opts, out)
		if err := reconcile.Run(ctx, job, reconcile.Options{Clear: opts.Clear}, counter, out); err != nil {
			return false, err
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

func (s *Service) job(tx *sql.Tx, opts Options, out *reconcile.Output) reconcile.Job[string, domain.PackageDistribution, collectionRow] {
	distributions := repository.NewDistributionRepo(tx)
	datasets := repository.NewDatasetRepo(tx)
	providers := repository.NewProviderRepo(tx)

	return reconcile.Job[string, domain.PackageDistribution, collectionRow]{
		Entity: domain.EntityDistribution,
		Label:  "PackageDistribution",
		Rows: func(ctx context.Context) ([]collectionRow, error) {
			cols, err := s.source.Collections(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]collectionRow, len(cols))
			for i := range cols {
				rows[i] = collectionRow{col: cols[i]}
			}
			return rows, nil
		},
		Key: func(r *collectionRow) string { return r.col.ID },
		Prepare: func(ctx context.Context, r *collectionRow) (string, error) {
			manual, err := distributions.ExistsUnmanaged(ctx, r.col.ID)
			if err != nil {
				return "", err
			}
			if manual {
				return fmt.Sprintf("skipping collection %q: distribution was created manually", r.col.ID), nil
			}
			ds, err := datasets.GetByDatasetID(ctx, r.col.ID)
			if err != nil {
				var nf *domain.NotFoundError
				if errors.As(err, &nf) {
					return fmt.Sprintf("skipping collection %q: no dataset with this id", r.col.ID), nil
				}
				return "", err
			}
			r.datasetID = ds.ID
			p, err := providers.GetByID(ctx, ds.ProviderID)
			if err != nil {
				return "", err
			}
			r.providerNames = append(p.Name.Values(), p.Acronym.Values()...)
			return "", nil
		},
		Fields: []reconcile.Field[domain.PackageDistribution, collectionRow]{
			reconcile.Attr("dataset",
				func(d *domain.PackageDistribution) *string { return &d.DatasetID },
				func(r *collectionRow) string { return r.datasetID }),
		},
		Find:     distributions.FindManaged,
		Blank:    domain.NewStacDistribution,
		Insert:   distributions.Insert,
		Update:   distributions.Update,
		RecordID: func(d *domain.PackageDistribution) string { return d.ID },
		Observe: func(_ context.Context, _ *domain.PackageDistribution, r *collectionRow) {
			reportDrift(out, r, opts.Threshold)
		},
		DeleteOrphans: func(ctx context.Context, _ string, keep []string) (domain.DeleteCounts, error) {
			return distributions.DeleteManagedExcept(ctx, keep)
		},
		Clear: distributions.ClearManaged,
	}
}

// reportDrift warns about every declared provider name that matches no local
// provider name closely enough. Drift is never corrected.
func reportDrift(out *reconcile.Output, r *collectionRow, threshold float64) {
	for _, p := range r.col.Providers {
		if score := stac.BestMatch(p.Name, r.providerNames); score < threshold {
			out.Warnf("provider drift on collection %q: %q has similarity %.2f to the local provider", r.col.ID, p.Name, score)
		}
	}
}
