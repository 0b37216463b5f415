package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
)

var datasetColumnList = append(append(append(
	[]string{"id", "dataset_id", "geocat_id"},
	translationCols("title")...),
	translationCols("description")...),
	"provider_id", "attribution_id", "legacy_id", "created_at", "updated_at")

var datasetColumns = strings.Join(datasetColumnList, ", ")

// DatasetRepo implements domain.DatasetRepository.
type DatasetRepo struct {
	q db.DBTX
}

// NewDatasetRepo creates a DatasetRepo bound to a pool or a transaction.
func NewDatasetRepo(q db.DBTX) *DatasetRepo {
	return &DatasetRepo{q: q}
}

var _ domain.DatasetRepository = (*DatasetRepo)(nil)

func scanDataset(row rowScanner) (*domain.Dataset, error) {
	var d domain.Dataset
	var geocatID sql.NullString
	var legacyID sql.NullInt64
	title := translationScan{dst: &d.Title}
	desc := translationScan{dst: &d.Description}

	dest := []any{&d.ID, &d.DatasetID, &geocatID}
	dest = append(dest, title.targets()...)
	dest = append(dest, desc.targets()...)
	dest = append(dest, &d.ProviderID, &d.AttributionID, &legacyID, &d.CreatedAt, &d.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	title.finish()
	desc.finish()
	d.GeocatID = strPtr(geocatID)
	d.LegacyID = intPtr(legacyID)
	return &d, nil
}

func datasetValues(d *domain.Dataset, created, updated time.Time) []any {
	vals := []any{d.ID, d.DatasetID, nullStr(d.GeocatID)}
	vals = append(vals, translationArgs(d.Title)...)
	vals = append(vals, translationArgs(d.Description)...)
	return append(vals, d.ProviderID, d.AttributionID, nullInt(d.LegacyID), created, updated)
}

func (r *DatasetRepo) getWhere(ctx context.Context, column string, value any) (*domain.Dataset, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE `+column+` = ? LIMIT 1`, value)
	d, err := scanDataset(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return d, nil
}

// GetByID returns a dataset by local key.
func (r *DatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	d, err := r.getWhere(ctx, "id", id)
	if err != nil {
		return nil, notFoundAs(err, "dataset %q not found", id)
	}
	return d, nil
}

// GetByDatasetID returns a dataset by external identifier.
func (r *DatasetRepo) GetByDatasetID(ctx context.Context, datasetID string) (*domain.Dataset, error) {
	d, err := r.getWhere(ctx, "dataset_id", datasetID)
	if err != nil {
		return nil, notFoundAs(err, "dataset %q not found", datasetID)
	}
	return d, nil
}

// FindByLegacyID returns the dataset imported from the given BOD dataset.
func (r *DatasetRepo) FindByLegacyID(ctx context.Context, legacyID int64) (*domain.Dataset, bool, error) {
	d, err := r.getWhere(ctx, "legacy_id", legacyID)
	return found(d, err)
}

// List returns a page of datasets ordered by external identifier.
func (r *DatasetRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	total, err := countTotal(ctx, r.q, "datasets")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets ORDER BY dataset_id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// Insert persists a new dataset.
func (r *DatasetRepo) Insert(ctx context.Context, d *domain.Dataset) error {
	if d.ID == "" {
		d.ID = domain.NewID()
	}
	now := time.Now().UTC()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("datasets").Cols(datasetColumnList...).Values(datasetValues(d, now, now)...)
	query, args := ib.Build()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(err)
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return nil
}

// Update writes every mutable column of an existing dataset.
func (r *DatasetRepo) Update(ctx context.Context, d *domain.Dataset) error {
	now := time.Now().UTC()
	if err := updateRow(ctx, r.q, "datasets", d.ID, datasetColumnList, datasetValues(d, d.CreatedAt, now)); err != nil {
		return notFoundAs(err, "dataset %q not found", d.ID)
	}
	d.UpdatedAt = now
	return nil
}

// DeleteLegacyExcept removes imported datasets whose legacy id is not in keep.
func (r *DatasetRepo) DeleteLegacyExcept(ctx context.Context, keep []int64) (domain.DeleteCounts, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id").From("datasets").Where(sb.IsNotNull("legacy_id"))
	if len(keep) > 0 {
		sb.Where(sb.NotIn("legacy_id", int64Args(keep)...))
	}
	ids, err := selectIDs(ctx, r.q, sb)
	if err != nil {
		return nil, fmt.Errorf("select orphaned datasets: %w", err)
	}
	return deleteCascading(ctx, r.q, datasetCascade, ids)
}

// ClearLegacy removes every imported dataset.
func (r *DatasetRepo) ClearLegacy(ctx context.Context) (domain.DeleteCounts, error) {
	return r.DeleteLegacyExcept(ctx, nil)
}
