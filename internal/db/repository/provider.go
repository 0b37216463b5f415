package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
)

var providerColumnList = append(append(append(
	[]string{"id", "provider_id"},
	translationCols("acronym")...),
	translationCols("name")...),
	"legacy_id", "created_at", "updated_at")

var providerColumns = strings.Join(providerColumnList, ", ")

// ProviderRepo implements domain.ProviderRepository.
type ProviderRepo struct {
	q db.DBTX
}

// NewProviderRepo creates a ProviderRepo bound to a pool or a transaction.
func NewProviderRepo(q db.DBTX) *ProviderRepo {
	return &ProviderRepo{q: q}
}

var _ domain.ProviderRepository = (*ProviderRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*domain.Provider, error) {
	var p domain.Provider
	var legacyID sql.NullInt64
	acronym := translationScan{dst: &p.Acronym}
	name := translationScan{dst: &p.Name}

	dest := []any{&p.ID, &p.ProviderID}
	dest = append(dest, acronym.targets()...)
	dest = append(dest, name.targets()...)
	dest = append(dest, &legacyID, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	acronym.finish()
	name.finish()
	p.LegacyID = intPtr(legacyID)
	return &p, nil
}

func (r *ProviderRepo) getWhere(ctx context.Context, column string, value any) (*domain.Provider, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE `+column+` = ? LIMIT 1`, value)
	p, err := scanProvider(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return p, nil
}

// GetByID returns a provider by local key.
func (r *ProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	p, err := r.getWhere(ctx, "id", id)
	if err != nil {
		return nil, notFoundAs(err, "provider %q not found", id)
	}
	return p, nil
}

// GetByProviderID returns a provider by external identifier.
func (r *ProviderRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.Provider, error) {
	p, err := r.getWhere(ctx, "provider_id", providerID)
	if err != nil {
		return nil, notFoundAs(err, "provider %q not found", providerID)
	}
	return p, nil
}

// FindByLegacyID returns the provider imported from the given BOD organisation.
func (r *ProviderRepo) FindByLegacyID(ctx context.Context, legacyID int64) (*domain.Provider, bool, error) {
	p, err := r.getWhere(ctx, "legacy_id", legacyID)
	return found(p, err)
}

// List returns a page of providers ordered by external identifier.
func (r *ProviderRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Provider, int64, error) {
	total, err := countTotal(ctx, r.q, "providers")
	if err != nil {
		return nil, 0, err
	}
	out, err := r.query(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY provider_id LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	return out, total, err
}

func (r *ProviderRepo) query(ctx context.Context, query string, args ...any) ([]domain.Provider, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Insert persists a new provider.
func (r *ProviderRepo) Insert(ctx context.Context, p *domain.Provider) error {
	if p.ID == "" {
		p.ID = domain.NewID()
	}
	now := time.Now().UTC()
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("providers").
		Cols(providerColumnList...).
		Values(providerValues(p, now, now)...)
	query, args := ib.Build()
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return mapDBError(err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update writes every mutable column of an existing provider.
func (r *ProviderRepo) Update(ctx context.Context, p *domain.Provider) error {
	now := time.Now().UTC()
	if err := updateRow(ctx, r.q, "providers", p.ID, providerColumnList, providerValues(p, p.CreatedAt, now)); err != nil {
		return notFoundAs(err, "provider %q not found", p.ID)
	}
	p.UpdatedAt = now
	return nil
}

func providerValues(p *domain.Provider, created, updated time.Time) []any {
	vals := []any{p.ID, p.ProviderID}
	vals = append(vals, translationArgs(p.Acronym)...)
	vals = append(vals, translationArgs(p.Name)...)
	return append(vals, nullInt(p.LegacyID), created, updated)
}

// DeleteLegacyExcept removes imported providers whose legacy id is not in
// keep, together with their cascaded attributions, datasets and distributions.
func (r *ProviderRepo) DeleteLegacyExcept(ctx context.Context, keep []int64) (domain.DeleteCounts, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("id").From("providers").Where(sb.IsNotNull("legacy_id"))
	if len(keep) > 0 {
		sb.Where(sb.NotIn("legacy_id", int64Args(keep)...))
	}
	ids, err := selectIDs(ctx, r.q, sb)
	if err != nil {
		return nil, fmt.Errorf("select orphaned providers: %w", err)
	}
	return deleteCascading(ctx, r.q, providerCascade, ids)
}

// ClearLegacy removes every imported provider; manual providers are kept.
func (r *ProviderRepo) ClearLegacy(ctx context.Context) (domain.DeleteCounts, error) {
	return r.DeleteLegacyExcept(ctx, nil)
}

// found converts a NotFoundError into the (nil, false, nil) triple of the
// Find* lookups.
func found[T any](v *T, err error) (*T, bool, error) {
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func notFoundAs(err error, format string, args ...any) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return domain.ErrNotFound(format, args...)
	}
	return err
}
