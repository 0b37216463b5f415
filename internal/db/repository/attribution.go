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

var attributionColumnList = append(append(append(
	[]string{"id", "attribution_id"},
	translationCols("name")...),
	translationCols("description")...),
	"provider_id", "legacy_id", "created_at", "updated_at")

var attributionColumns = strings.Join(attributionColumnList, ", ")

// AttributionRepo implements domain.AttributionRepository.
type AttributionRepo struct {
	q db.DBTX
}

// NewAttributionRepo creates an AttributionRepo bound to a pool or a transaction.
func NewAttributionRepo(q db.DBTX) *AttributionRepo {
	return &AttributionRepo{q: q}
}

var _ domain.AttributionRepository = (*AttributionRepo)(nil)

func scanAttribution(row rowScanner) (*domain.Attribution, error) {
	var a domain.Attribution
	var legacyID sql.NullInt64
	name := translationScan{dst: &a.Name}
	desc := translationScan{dst: &a.Description}

	dest := []any{&a.ID, &a.AttributionID}
	dest = append(dest, name.targets()...)
	dest = append(dest, desc.targets()...)
	dest = append(dest, &a.ProviderID, &legacyID, &a.CreatedAt, &a.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	name.finish()
	desc.finish()
	a.LegacyID = intPtr(legacyID)
	return &a, nil
}

func attributionValues(a *domain.Attribution, created, updated time.Time) []any {
	vals := []any{a.ID, a.AttributionID}
	vals = append(vals, translationArgs(a.Name)...)
	vals = append(vals, translationArgs(a.Description)...)
	return append(vals, a.ProviderID, nullInt(a.LegacyID), created, updated)
}

func (r *AttributionRepo) getWhere(ctx context.Context, column string, value any) (*domain.Attribution, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+attributionColumns+` FROM attributions WHERE `+column+` = ? LIMIT 1`, value)
	a, err := scanAttribution(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return a, nil
}

// GetByID returns an attribution by local key.
func (r *AttributionRepo) GetByID(ctx context.Context, id string) (*domain.Attribution, error) {
	a, err := r.getWhere(ctx, "id", id)
	if err != nil {
		return nil, notFoundAs(err, "attribution %q not found", id)
	}
	return a, nil
}

// GetByAttributionID returns an attribution by external identifier.
func (r *AttributionRepo) GetByAttributionID(ctx context.Context, attributionID string) (*domain.Attribution, error) {
	a, err := r.getWhere(ctx, "attribution_id", attributionID)
	if err != nil {
		return nil, notFoundAs(err, "attribution %q not found", attributionID)
	}
	return a, nil
}

// FindByLegacyID returns the attribution imported from the given BOD organisation.
func (r *AttributionRepo) FindByLegacyID(ctx context.Context, legacyID int64) (*domain.Attribution, bool, error) {
	a, err := r.getWhere(ctx, "legacy_id", legacyID)
	return found(a, err)
}

// List returns a page of attributions ordered by external identifier.
func (r *AttributionRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Attribution, int64, error) {
	total, err := countTotal(ctx, r.q, "attributions")
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+attributionColumns+` FROM attributions ORDER BY attribution_id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Attribution
	for rows.Next() {
		a, err := scanAttribution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

// Insert persists a new attribution.
func (r *AttributionRepo) Insert(ctx context.Context, a *domain.Attribution) error {
	if a.ID == "" {
		a.ID = domain.NewID()
	}
	now := time.Now().UTC()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("attributions").Cols(attributionColumnList...).Values(attributionValues(a, now, now)...)
	query, args := ib.Build()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(err)
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

// Update writes every mutable column of an existing attribution.
func (r *AttributionRepo) Update(ctx context.Context, a *domain.Attribution) error {
	now := time.Now().UTC()
	if err := updateRow(ctx, r.q, "attributions", a.ID, attributionColumnList, attributionValues(a, a.CreatedAt, now)); err != nil {
		return notFoundAs(err, "attribution %q not found", a.ID)
	}
	a.UpdatedAt = now
	return nil
}

// DeleteLegacyExcept removes imported attributions of providerID whose legacy
// id is not in keep. Datasets referencing them are removed by cascade.
func (r *AttributionRepo) DeleteLegacyExcept(ctx context.Context, providerID string, keep []int64) (domain.DeleteCounts, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id").From("attributions").Where(sb.IsNotNull("legacy_id"))
	if providerID != "" {
		sb.Where(sb.Equal("provider_id", providerID))
	}
	if len(keep) > 0 {
		sb.Where(sb.NotIn("legacy_id", int64Args(keep)...))
	}
	ids, err := selectIDs(ctx, r.q, sb)
	if err != nil {
		return nil, fmt.Errorf("select orphaned attributions: %w", err)
	}
	return deleteCascading(ctx, r.q, attributionCascade, ids)
}

// LegacyProviderIDs returns the local keys of every provider owning at least
// one imported attribution, whether or not the provider itself was imported.
func (r *AttributionRepo) LegacyProviderIDs(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Distinct().Select("provider_id").From("attributions").Where(sb.IsNotNull("legacy_id")).OrderBy("provider_id")
	ids, err := selectIDs(ctx, r.q, sb)
	if err != nil {
		return nil, fmt.Errorf("select attribution providers: %w", err)
	}
	return ids, nil
}

// ClearLegacy removes every imported attribution.
func (r *AttributionRepo) ClearLegacy(ctx context.Context) (domain.DeleteCounts, error) {
	return r.DeleteLegacyExcept(ctx, "", nil)
}

// updateRow assigns every column except id and created_at.
func updateRow(ctx context.Context, q db.DBTX, table, id string, cols []string, vals []any) error {
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update(table)
	for i, c := range cols {
		if c == "id" || c == "created_at" {
			continue
		}
		ub.SetMore(ub.Assign(c, vals[i]))
	}
	ub.Where(ub.Equal("id", id))
	query, args := ub.Build()
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	return nil
}
