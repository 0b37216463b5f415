package bod

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoadmin-control/internal/domain"
)

const testSchema = `
CREATE TABLE organisation (
	id INTEGER PRIMARY KEY, attribution TEXT NOT NULL,
	abkuerzung_de TEXT, abkuerzung_fr TEXT, abkuerzung_en TEXT, abkuerzung_it TEXT, abkuerzung_rm TEXT,
	name_de TEXT, name_fr TEXT, name_en TEXT, name_it TEXT, name_rm TEXT
);
CREATE TABLE dataset (
	id INTEGER PRIMARY KEY, id_dataset TEXT NOT NULL, fk_geocat TEXT, fk_organisation INTEGER NOT NULL
);
CREATE TABLE geocat_publication (
	id TEXT PRIMARY KEY,
	title_de TEXT, title_fr TEXT, title_en TEXT, title_it TEXT, title_rm TEXT,
	abstract_de TEXT, abstract_fr TEXT, abstract_en TEXT, abstract_it TEXT, abstract_rm TEXT
);
CREATE TABLE translation (
	msg_id TEXT PRIMARY KEY, de TEXT, fr TEXT, en TEXT, it TEXT, rm TEXT
);
INSERT INTO organisation (id, attribution, abkuerzung_de, name_en) VALUES
	(17, 'ch.bafu', 'BAFU', 'Federal Office for the Environment'),
	(18, 'ch.bafu.wald', NULL, NULL);
INSERT INTO dataset (id, id_dataset, fk_geocat, fk_organisation) VALUES
	(170, 'ch.bafu.auen-vegetationskarten', 'geo-1', 17);
INSERT INTO geocat_publication (id, title_de, abstract_de) VALUES ('geo-1', 'Auen', 'Karten');
INSERT INTO translation (msg_id, de, fr, en, rm) VALUES ('ch.bafu.wald', 'Wald', 'Forêt', 'Forest', '');
`

func openTestReader(t *testing.T) *Reader {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return NewReader(db, "")
}

func TestReader_Organisations(t *testing.T) {
	r := openTestReader(t)

	orgs, err := r.Organisations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 2)

	assert.Equal(t, int64(17), orgs[0].ID)
	assert.Equal(t, 1, orgs[0].Dots())
	assert.Equal(t, 2, orgs[1].Dots())

	acr := orgs[0].Acronym()
	assert.Equal(t, "BAFU", acr.De)
	assert.Equal(t, domain.Placeholder, acr.Fr)
	assert.Nil(t, acr.It)
	assert.Equal(t, "Federal Office for the Environment", orgs[0].Name().En)
}

func TestReader_Datasets(t *testing.T) {
	r := openTestReader(t)

	ds, err := r.Datasets(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "ch.bafu.auen-vegetationskarten", ds[0].DatasetID)
	assert.Equal(t, int64(17), ds[0].OrganisationID)
	assert.Equal(t, "geo-1", ds[0].GeocatID.String)
}

func TestReader_Lookups(t *testing.T) {
	r := openTestReader(t)
	ctx := context.Background()

	g, ok, err := r.GeocatPublication(ctx, "geo-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Auen", g.Title().De)
	assert.Equal(t, "Karten", g.Description().De)
	assert.Equal(t, domain.Placeholder, g.Title().En)

	_, ok, err = r.GeocatPublication(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	tr, ok, err := r.Translation(ctx, "ch.bafu.wald")
	require.NoError(t, err)
	require.True(t, ok)
	names := tr.Translations()
	assert.Equal(t, "Forêt", names.Fr)
	assert.Nil(t, names.Rm, "empty optional translations are treated as absent")
}

func TestReader_SchemaPrefix(t *testing.T) {
	r := NewReader(nil, "re3")
	assert.Equal(t, "re3.translation", r.table("translation"))
}

func TestQueryError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"network", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, true},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", fmt.Errorf("query: %w", sql.ErrConnDone), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"undefined table", &pq.Error{Code: "42P01"}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := queryError("organisations", tt.err)

			var unavailable *domain.UnavailableError
			assert.Equal(t, tt.unavailable, errors.As(err, &unavailable))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReader_SQLErrorIsNotUnavailable(t *testing.T) {
	r := openTestReader(t)
	r.schema = "missing"

	_, err := r.Organisations(context.Background())
	require.Error(t, err)
	var unavailable *domain.UnavailableError
	assert.False(t, errors.As(err, &unavailable))
}
