// Package bod reads the legacy BOD database, the source of truth for
// providers, attributions and datasets. Access is read-only.
package bod

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"geoadmin-control/internal/domain"
)

// Organisation is a BOD organisation. Its attribution code has one dot for a
// provider ("ch.bafu") and two dots for a sub-attribution ("ch.bafu.wald").
type Organisation struct {
	ID          int64          `db:"id"`
	Attribution string         `db:"attribution"`
	AcronymDe   sql.NullString `db:"abkuerzung_de"`
	AcronymFr   sql.NullString `db:"abkuerzung_fr"`
	AcronymEn   sql.NullString `db:"abkuerzung_en"`
	AcronymIt   sql.NullString `db:"abkuerzung_it"`
	AcronymRm   sql.NullString `db:"abkuerzung_rm"`
	NameDe      sql.NullString `db:"name_de"`
	NameFr      sql.NullString `db:"name_fr"`
	NameEn      sql.NullString `db:"name_en"`
	NameIt      sql.NullString `db:"name_it"`
	NameRm      sql.NullString `db:"name_rm"`
}

// Acronym returns the organisation's acronym translations.
func (o *Organisation) Acronym() domain.Translations {
	return translations(o.AcronymDe, o.AcronymFr, o.AcronymEn, o.AcronymIt, o.AcronymRm)
}

// Name returns the organisation's name translations.
func (o *Organisation) Name() domain.Translations {
	return translations(o.NameDe, o.NameFr, o.NameEn, o.NameIt, o.NameRm)
}

// Dots returns the number of segment separators in the attribution code.
func (o *Organisation) Dots() int {
	return strings.Count(o.Attribution, ".")
}

// Dataset is a BOD dataset.
type Dataset struct {
	ID             int64          `db:"id"`
	DatasetID      string         `db:"id_dataset"`
	GeocatID       sql.NullString `db:"fk_geocat"`
	OrganisationID int64          `db:"fk_organisation"`
}

// GeocatPublication holds the metadata published for a dataset in geocat.
type GeocatPublication struct {
	ID            string         `db:"id"`
	TitleDe       sql.NullString `db:"title_de"`
	TitleFr       sql.NullString `db:"title_fr"`
	TitleEn       sql.NullString `db:"title_en"`
	TitleIt       sql.NullString `db:"title_it"`
	TitleRm       sql.NullString `db:"title_rm"`
	DescriptionDe sql.NullString `db:"abstract_de"`
	DescriptionFr sql.NullString `db:"abstract_fr"`
	DescriptionEn sql.NullString `db:"abstract_en"`
	DescriptionIt sql.NullString `db:"abstract_it"`
	DescriptionRm sql.NullString `db:"abstract_rm"`
}

// Title returns the publication's title translations.
func (g *GeocatPublication) Title() domain.Translations {
	return translations(g.TitleDe, g.TitleFr, g.TitleEn, g.TitleIt, g.TitleRm)
}

// Description returns the publication's abstract translations.
func (g *GeocatPublication) Description() domain.Translations {
	return translations(g.DescriptionDe, g.DescriptionFr, g.DescriptionEn, g.DescriptionIt, g.DescriptionRm)
}

// Translation is an entry of the locale-keyed translation table.
type Translation struct {
	MsgID string         `db:"msg_id"`
	De    sql.NullString `db:"de"`
	Fr    sql.NullString `db:"fr"`
	En    sql.NullString `db:"en"`
	It    sql.NullString `db:"it"`
	Rm    sql.NullString `db:"rm"`
}

// Translations returns the entry as domain translations.
func (t *Translation) Translations() domain.Translations {
	return translations(t.De, t.Fr, t.En, t.It, t.Rm)
}

// translations maps nullable columns to domain translations. Missing
// mandatory languages become the placeholder; missing optional ones stay nil.
func translations(de, fr, en, it, rm sql.NullString) domain.Translations {
	return domain.Translations{
		De: required(de),
		Fr: required(fr),
		En: required(en),
		It: optional(it),
		Rm: optional(rm),
	}
}

func required(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return domain.Placeholder
	}
	return s.String
}

func optional(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}

// Reader queries the BOD tables below an optional schema.
type Reader struct {
	db     *sqlx.DB
	schema string
}

// Open connects to the BOD postgres database.
func Open(ctx context.Context, dsn, schema string) (*Reader, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open bod: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.ErrUnavailable("bod", err)
	}
	return NewReader(db, schema), nil
}

// NewReader wraps an existing connection.
func NewReader(db *sqlx.DB, schema string) *Reader {
	return &Reader{db: db, schema: schema}
}

// Close closes the underlying connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

func (r *Reader) table(name string) string {
	if r.schema == "" {
		return name
	}
	return r.schema + "." + name
}

// Organisations returns every organisation ordered by id.
func (r *Reader) Organisations(ctx context.Context) ([]Organisation, error) {
	var out []Organisation
	q := `SELECT id, attribution,
		abkuerzung_de, abkuerzung_fr, abkuerzung_en, abkuerzung_it, abkuerzung_rm,
		name_de, name_fr, name_en, name_it, name_rm
		FROM ` + r.table("organisation") + ` ORDER BY id`
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, queryError("organisations", err)
	}
	return out, nil
}

// Datasets returns every dataset ordered by id.
func (r *Reader) Datasets(ctx context.Context) ([]Dataset, error) {
	var out []Dataset
	q := `SELECT id, id_dataset, fk_geocat, fk_organisation FROM ` + r.table("dataset") + ` ORDER BY id`
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, queryError("datasets", err)
	}
	return out, nil
}

// GeocatPublication returns the geocat publication with the given id.
func (r *Reader) GeocatPublication(ctx context.Context, id string) (*GeocatPublication, bool, error) {
	var g GeocatPublication
	q := r.db.Rebind(`SELECT id, title_de, title_fr, title_en, title_it, title_rm,
		abstract_de, abstract_fr, abstract_en, abstract_it, abstract_rm
		FROM ` + r.table("geocat_publication") + ` WHERE id = ?`)
	return getOne(r.db.GetContext(ctx, &g, q, id), &g, "geocat publication")
}

// Translation returns the translation entry with the given message id.
func (r *Reader) Translation(ctx context.Context, msgID string) (*Translation, bool, error) {
	var t Translation
	q := r.db.Rebind(`SELECT msg_id, de, fr, en, it, rm FROM ` + r.table("translation") + ` WHERE msg_id = ?`)
	return getOne(r.db.GetContext(ctx, &t, q, msgID), &t, "translation")
}

func getOne[T any](err error, v *T, what string) (*T, bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, queryError(what, err)
	}
	return v, true, nil
}

// queryError reports lost connections as the BOD being unavailable. Errors
// raised by the server for the statement itself stay plain.
func queryError(what string, err error) error {
	if isConnectionError(err) {
		return domain.ErrUnavailable("bod", fmt.Errorf("select %s: %w", what, err))
	}
	return fmt.Errorf("select %s: %w", what, err)
}

func isConnectionError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08: connection exception, 57P: operator intervention (shutdown).
		return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P")
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
