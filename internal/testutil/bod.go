package testutil

import (
	"context"
	"database/sql"

	"geoadmin-control/internal/bod"
)

// FakeBODSource is an in-memory BOD. Fn fields override the defaults.
type FakeBODSource struct {
	OrgRows      []bod.Organisation
	DatasetRows  []bod.Dataset
	Geocat       map[string]bod.GeocatPublication
	Translations map[string]bod.Translation

	OrganisationsFn func(ctx context.Context) ([]bod.Organisation, error)
}

// Organisations implements the interface method for testing.
func (f *FakeBODSource) Organisations(ctx context.Context) ([]bod.Organisation, error) {
	if f.OrganisationsFn != nil {
		return f.OrganisationsFn(ctx)
	}
	return append([]bod.Organisation(nil), f.OrgRows...), nil
}

// Datasets implements the interface method for testing.
func (f *FakeBODSource) Datasets(_ context.Context) ([]bod.Dataset, error) {
	return append([]bod.Dataset(nil), f.DatasetRows...), nil
}

// GeocatPublication implements the interface method for testing.
func (f *FakeBODSource) GeocatPublication(_ context.Context, id string) (*bod.GeocatPublication, bool, error) {
	g, ok := f.Geocat[id]
	if !ok {
		return nil, false, nil
	}
	return &g, true, nil
}

// Translation implements the interface method for testing.
func (f *FakeBODSource) Translation(_ context.Context, msgID string) (*bod.Translation, bool, error) {
	t, ok := f.Translations[msgID]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

// NullString returns a valid sql.NullString.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
