package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
)

var distributionColumnList = []string{
	"id", "package_distribution_id", "managed_by_stac", "dataset_id", "created_at", "updated_at",
}

var distributionColumns = strings.Join(distributionColumnList, ", ")

// DistributionRepo implements domain.DistributionRepository.
type DistributionRepo struct {
	q db.DBTX
}

// NewDistributionRepo creates a DistributionRepo bound to a pool or a transaction.
func NewDistributionRepo(q db.DBTX) *DistributionRepo {
	return &DistributionRepo{q: q}
}

var _ domain.DistributionRepository = (*DistributionRepo)(nil)

func scanDistribution(row rowScanner) (*domain.PackageDistribution, error) {
	var d domain.PackageDistribution
	var managed int64
	if err := row.Scan(&d.ID, &d.PackageDistributionID, &managed, &d.DatasetID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ManagedByStac = managed != 0
	return &d, nil
}

func distributionValues(d *domain.PackageDistribution, created, updated time.Time) []any {
	return []any{d.ID, d.PackageDistributionID, boolToInt(d.ManagedByStac), d.DatasetID, created, updated}
}

// FindManaged returns the STAC-managed distribution with the given identifier.
func (r *DistributionRepo) FindManaged(ctx context.Context, packageDistributionID string) (*domain.PackageDistribution, bool, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+distributionColumns+` FROM package_distributions
		 WHERE package_distribution_id = ? AND managed_by_stac = 1`, packageDistributionID)
	d, err := scanDistribution(row)
	return found(d, mapDBError(err))
}

// ExistsUnmanaged reports whether a distribution with the given identifier
// exists that is not owned by the STAC sync.
func (r *DistributionRepo) ExistsUnmanaged(ctx context.Context, packageDistributionID string) (bool, error) {
	var n int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM package_distributions
		 WHERE package_distribution_id = ? AND managed_by_stac = 0`, packageDistributionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns a page of distributions ordered by identifier.
func (r *DistributionRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.PackageDistribution, int64, error) {
	total, err := countTotal(ctx, r.q, "package_distributions")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+distributionColumns+` FROM package_distributions ORDER BY package_distribution_id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.PackageDistribution
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// Insert persists a new distribution.
func (r *DistributionRepo) Insert(ctx context.Context, d *domain.PackageDistribution) error {
	if d.ID == "" {
		d.ID = domain.NewID()
	}
	now := time.Now().UTC()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("package_distributions").Cols(distributionColumnList...).Values(distributionValues(d, now, now)...)
	query, args := ib.Build()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(err)
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

// Update writes every mutable column of an existing distribution.
func (r *DistributionRepo) Update(ctx context.Context, d *domain.PackageDistribution) error {
	now := time.Now().UTC()
	if err := updateRow(ctx, r.q, "package_distributions", d.ID, distributionColumnList, distributionValues(d, d.CreatedAt, now)); err != nil {
		return notFoundAs(err, "distribution %q not found", d.ID)
	}
	d.UpdatedAt = now
	return nil
}

// DeleteManagedExcept removes STAC-managed distributions not in keep.
// Manually maintained distributions are never touched.
func (r *DistributionRepo) DeleteManagedExcept(ctx context.Context, keep []string) (domain.DeleteCounts, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id").From("package_distributions").Where(sb.Equal("managed_by_stac", 1))
	if len(keep) > 0 {
		sb.Where(sb.NotIn("package_distribution_id", stringArgs(keep)...))
	}
	ids, err := selectIDs(ctx, r.q, sb)
	if err != nil {
		return nil, fmt.Errorf("select orphaned distributions: %w", err)
	}
	return deleteCascading(ctx, r.q, distributionCascade, ids)
}

// ClearManaged removes every STAC-managed distribution.
func (r *DistributionRepo) ClearManaged(ctx context.Context) (domain.DeleteCounts, error) {
	return r.DeleteManagedExcept(ctx, nil)
}
