package reconcile

import (
	"context"
	"fmt"

	"geoadmin-control/internal/domain"
)

// Job describes how one entity type is reconciled against a foreign source.
// K is the legacy linkage key, R the local record and S the source row.
type Job[K comparable, R, S any] struct {
	Entity string // counter name, e.g. "provider"
	Label  string // change-log name, e.g. "Provider"

	// Rows returns the complete foreign source for this run.
	Rows func(ctx context.Context) ([]S, error)
	// Accept filters rows that do not belong to this entity type. Rejected
	// rows are skipped silently. Nil accepts every row.
	Accept func(src *S) bool
	Key    func(src *S) K
	// Prepare resolves cross references on the row. A non-empty skip reason
	// skips the row with a warning; it is neither counted nor kept.
	Prepare func(ctx context.Context, src *S) (skip string, err error)
	Fields  []Field[R, S]

	Find   func(ctx context.Context, key K) (*R, bool, error)
	Blank  func(key K) *R
	Insert func(ctx context.Context, rec *R) error
	Update func(ctx context.Context, rec *R) error
	// RecordID identifies a record in change-log lines.
	RecordID func(rec *R) string
	// Observe is called for every reconciled row after it was persisted.
	Observe func(ctx context.Context, rec *R, src *S)

	// Scope partitions processed keys by parent. With Scope set, orphans are
	// collected once per entry of Scopes, each with the keys of that scope.
	Scope  func(rec *R) string
	Scopes func(ctx context.Context) ([]string, error)
	// DeleteOrphans removes records with a non-null linkage not in keep.
	DeleteOrphans func(ctx context.Context, scope string, keep []K) (domain.DeleteCounts, error)
	// Clear removes every record with a non-null linkage.
	Clear func(ctx context.Context) (domain.DeleteCounts, error)
}

// Options control a single driver run.
type Options struct {
	Clear bool
}

// Run reconciles one entity type: optional clear, then every accepted row is
// resolved, diffed and persisted, then orphans are collected. Run does not
// manage transactions; callers run it inside one.
func Run[K comparable, R, S any](ctx context.Context, job Job[K, R, S], opts Options, counter *Counter, out *Output) error {
	if opts.Clear {
		counts, err := job.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear %s: %w", job.Entity, err)
		}
		counter.AddDeletes(OpCleared, counts)
	}

	rows, err := job.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read %s source: %w", job.Entity, err)
	}

	keep := map[string][]K{}
	seen := map[K]bool{}
	for i := range rows {
		src := &rows[i]
		if job.Accept != nil && !job.Accept(src) {
			continue
		}
		if job.Prepare != nil {
			skip, err := job.Prepare(ctx, src)
			if err != nil {
				return fmt.Errorf("prepare %s: %w", job.Entity, err)
			}
			if skip != "" {
				out.Warnf("%s", skip)
				continue
			}
		}

		key := job.Key(src)
		rec, err := reconcileRow(ctx, job, key, src, counter, out)
		if err != nil {
			return err
		}
		if job.Observe != nil {
			job.Observe(ctx, rec, src)
		}

		if seen[key] {
			continue
		}
		seen[key] = true
		scope := ""
		if job.Scope != nil {
			scope = job.Scope(rec)
		}
		keep[scope] = append(keep[scope], key)
	}

	return collectOrphans(ctx, job, keep, counter)
}

func reconcileRow[K comparable, R, S any](ctx context.Context, job Job[K, R, S], key K, src *S, counter *Counter, out *Output) (*R, error) {
	rec, exists, err := job.Find(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find %s %v: %w", job.Entity, key, err)
	}
	if !exists {
		rec = job.Blank(key)
	}

	changes := Diff(rec, src, job.Fields)

	if !exists {
		if err := job.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("insert %s %v: %w", job.Entity, key, err)
		}
		counter.Increment(job.Entity, OpAdded)
		return rec, nil
	}
	if len(changes) == 0 {
		return rec, nil
	}

	id := job.RecordID(rec)
	for _, c := range changes {
		out.Printf("Changed %s %s %s from '%s' to '%s'", job.Label, id, c.Field, c.OldValue, c.NewValue)
	}
	if err := job.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", job.Entity, id, err)
	}
	counter.Increment(job.Entity, OpUpdated)
	return rec, nil
}

func collectOrphans[K comparable, R, S any](ctx context.Context, job Job[K, R, S], keep map[string][]K, counter *Counter) error {
	scopes := []string{""}
	if job.Scope != nil {
		var err error
		if scopes, err = job.Scopes(ctx); err != nil {
			return fmt.Errorf("list %s scopes: %w", job.Entity, err)
		}
	}
	for _, scope := range scopes {
		counts, err := job.DeleteOrphans(ctx, scope, keep[scope])
		if err != nil {
			return fmt.Errorf("remove orphaned %s: %w", job.Entity, err)
		}
		counter.AddDeletes(OpRemoved, counts)
	}
	return nil
}
