// Package repository implements domain repository interfaces using SQLite.
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

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists: " + uniqueColumn(msg)}
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return &domain.ConflictError{Message: "referenced resource missing or still in use"}
	}
	return err
}

// uniqueColumn extracts "table.column" from an SQLite unique violation message.
func uniqueColumn(msg string) string {
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// translationCols returns the five language columns of a translated field.
func translationCols(prefix string) []string {
	return []string{prefix + "_de", prefix + "_fr", prefix + "_en", prefix + "_it", prefix + "_rm"}
}

func translationArgs(t domain.Translations) []any {
	return []any{t.De, t.Fr, t.En, nullStr(t.It), nullStr(t.Rm)}
}

// translationScan collects scan destinations for a translated field and
// copies the nullable languages back once the row has been scanned.
type translationScan struct {
	dst    *domain.Translations
	it, rm sql.NullString
}

func (s *translationScan) targets() []any {
	return []any{&s.dst.De, &s.dst.Fr, &s.dst.En, &s.it, &s.rm}
}

func (s *translationScan) finish() {
	s.dst.It = strPtr(s.it)
	s.dst.Rm = strPtr(s.rm)
}

func int64Args(values []int64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func selectIDs(ctx context.Context, q db.DBTX, sb *sqlbuilder.SelectBuilder) ([]string, error) {
	query, args := sb.Build()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func countTotal(ctx context.Context, q db.DBTX, table string) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// cascade describes the tables whose rows disappear through ON DELETE CASCADE
// when rows of a parent table are deleted.
type cascade struct {
	entity   string
	table    string
	children []childRef
}

type childRef struct {
	cascade *cascade
	column  string
}

var (
	distributionCascade = &cascade{entity: domain.EntityDistribution, table: "package_distributions"}
	datasetCascade      = &cascade{entity: domain.EntityDataset, table: "datasets", children: []childRef{
		{cascade: distributionCascade, column: "dataset_id"},
	}}
	attributionCascade = &cascade{entity: domain.EntityAttribution, table: "attributions", children: []childRef{
		{cascade: datasetCascade, column: "attribution_id"},
	}}
	providerCascade = &cascade{entity: domain.EntityProvider, table: "providers", children: []childRef{
		{cascade: attributionCascade, column: "provider_id"},
		{cascade: datasetCascade, column: "provider_id"},
	}}
)

// deleteCascading deletes the given rows of c.table and reports, per entity,
// how many rows were removed including cascaded dependents.
func deleteCascading(ctx context.Context, q db.DBTX, c *cascade, ids []string) (domain.DeleteCounts, error) {
	counts := domain.DeleteCounts{}
	if len(ids) == 0 {
		return counts, nil
	}

	affected := map[*cascade]map[string]struct{}{}
	if err := collectDependents(ctx, q, c, ids, affected); err != nil {
		return nil, err
	}

	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom(c.table).Where(del.In("id", stringArgs(ids)...))
	query, args := del.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return nil, mapDBError(fmt.Errorf("delete %s: %w", c.table, err))
	}

	for dep, set := range affected {
		if len(set) > 0 {
			counts[dep.entity] += len(set)
		}
	}
	return counts, nil
}

func collectDependents(ctx context.Context, q db.DBTX, c *cascade, ids []string, affected map[*cascade]map[string]struct{}) error {
	set, ok := affected[c]
	if !ok {
		set = map[string]struct{}{}
		affected[c] = set
	}
	var fresh []string
	for _, id := range ids {
		if _, seen := set[id]; !seen {
			set[id] = struct{}{}
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	for _, child := range c.children {
		sb := sqlbuilder.SQLite.NewSelectBuilder()
		sb.Select("id").From(child.cascade.table).Where(sb.In(child.column, stringArgs(fresh)...))
		childIDs, err := selectIDs(ctx, q, sb)
		if err != nil {
			return fmt.Errorf("collect %s dependents: %w", child.cascade.table, err)
		}
		if err := collectDependents(ctx, q, child.cascade, childIDs, affected); err != nil {
			return err
		}
	}
	return nil
}
