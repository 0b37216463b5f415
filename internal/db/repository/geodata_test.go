package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "geoadmin-control/internal/db"
	"geoadmin-control/internal/domain"
)

func setupGeoDB(t *testing.T) *sql.DB {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	return writeDB
}

func seedProvider(t *testing.T, q internaldb.DBTX, providerID string, legacyID *int64) *domain.Provider {
	t.Helper()
	p := &domain.Provider{
		ProviderID: providerID,
		Acronym:    domain.Translations{De: "A", Fr: "A", En: "A"},
		Name:       domain.Translations{De: "Name", Fr: "Nom", En: "Name"},
		LegacyID:   legacyID,
	}
	require.NoError(t, NewProviderRepo(q).Insert(context.Background(), p))
	return p
}

func seedAttribution(t *testing.T, q internaldb.DBTX, p *domain.Provider, attributionID string, legacyID *int64) *domain.Attribution {
	t.Helper()
	a := &domain.Attribution{
		AttributionID: attributionID,
		Name:          domain.PlaceholderTranslations(),
		Description:   domain.PlaceholderTranslations(),
		ProviderID:    p.ID,
		LegacyID:      legacyID,
	}
	require.NoError(t, NewAttributionRepo(q).Insert(context.Background(), a))
	return a
}

func seedDataset(t *testing.T, q internaldb.DBTX, a *domain.Attribution, datasetID string, legacyID *int64) *domain.Dataset {
	t.Helper()
	d := &domain.Dataset{
		DatasetID:     datasetID,
		Title:         domain.PlaceholderTranslations(),
		Description:   domain.PlaceholderTranslations(),
		ProviderID:    a.ProviderID,
		AttributionID: a.ID,
		LegacyID:      legacyID,
	}
	require.NoError(t, NewDatasetRepo(q).Insert(context.Background(), d))
	return d
}

func legacy(id int64) *int64 { return &id }

func TestProviderRepo_CRUD(t *testing.T) {
	repo := NewProviderRepo(setupGeoDB(t))
	ctx := context.Background()

	rm := "Uffizi"
	p := &domain.Provider{
		ProviderID: "ch.bafu",
		Acronym:    domain.Translations{De: "BAFU", Fr: "OFEV", En: "FOEN"},
		Name:       domain.Translations{De: "Bundesamt", Fr: "Office", En: "Office", Rm: &rm},
		LegacyID:   legacy(7),
	}
	require.NoError(t, repo.Insert(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByProviderID(ctx, "ch.bafu")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "OFEV", got.Acronym.Fr)
	require.NotNil(t, got.Name.Rm)
	assert.Equal(t, "Uffizi", *got.Name.Rm)
	assert.Nil(t, got.Name.It)
	require.NotNil(t, got.LegacyID)
	assert.Equal(t, int64(7), *got.LegacyID)

	found, ok, err := repo.FindByLegacyID(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, found.ID)

	_, ok, err = repo.FindByLegacyID(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	got.Acronym.En = "FOEN2"
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "FOEN2", got.Acronym.En)

	list, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	_, err = repo.GetByID(ctx, "missing")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestProviderRepo_InsertDuplicate(t *testing.T) {
	q := setupGeoDB(t)
	seedProvider(t, q, "ch.bafu", nil)

	err := NewProviderRepo(q).Insert(context.Background(), &domain.Provider{
		ProviderID: "ch.bafu",
		Acronym:    domain.PlaceholderTranslations(),
		Name:       domain.PlaceholderTranslations(),
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestProviderRepo_UpdateMissing(t *testing.T) {
	repo := NewProviderRepo(setupGeoDB(t))
	p := domain.NewLegacyProvider(1)

	err := repo.Update(context.Background(), p)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestProviderRepo_DeleteLegacyExceptCascades(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()

	kept := seedProvider(t, q, "ch.kept", legacy(1))
	gone := seedProvider(t, q, "ch.gone", legacy(2))
	manual := seedProvider(t, q, "ch.manual", nil)

	seedAttribution(t, q, kept, "ch.kept", legacy(1))
	goneAttr := seedAttribution(t, q, gone, "ch.gone", legacy(2))
	goneSub := seedAttribution(t, q, gone, "ch.gone.sub", legacy(3))
	ds := seedDataset(t, q, goneAttr, "ch.gone.ds1", legacy(10))
	seedDataset(t, q, goneSub, "ch.gone.ds2", legacy(11))
	require.NoError(t, NewDistributionRepo(q).Insert(ctx, &domain.PackageDistribution{
		PackageDistributionID: "ch.gone.ds1", ManagedByStac: true, DatasetID: ds.ID,
	}))

	counts, err := NewProviderRepo(q).DeleteLegacyExcept(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteCounts{
		domain.EntityProvider:     1,
		domain.EntityAttribution:  2,
		domain.EntityDataset:      2,
		domain.EntityDistribution: 1,
	}, counts)

	_, err = NewProviderRepo(q).GetByID(ctx, manual.ID)
	require.NoError(t, err, "manual providers are never orphans")
	_, err = NewProviderRepo(q).GetByID(ctx, kept.ID)
	require.NoError(t, err)
	_, err = NewDatasetRepo(q).GetByID(ctx, ds.ID)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestProviderRepo_ClearLegacyNothing(t *testing.T) {
	q := setupGeoDB(t)
	seedProvider(t, q, "ch.manual", nil)

	counts, err := NewProviderRepo(q).ClearLegacy(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAttributionRepo_DeleteLegacyExceptScopedToProvider(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()

	a := seedProvider(t, q, "ch.a", legacy(1))
	b := seedProvider(t, q, "ch.b", legacy(2))
	seedAttribution(t, q, a, "ch.a", legacy(1))
	stale := seedAttribution(t, q, a, "ch.a.old", legacy(5))
	other := seedAttribution(t, q, b, "ch.b.old", legacy(6))

	counts, err := NewAttributionRepo(q).DeleteLegacyExcept(ctx, a.ID, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteCounts{domain.EntityAttribution: 1}, counts)

	repo := NewAttributionRepo(q)
	_, err = repo.GetByID(ctx, stale.ID)
	require.Error(t, err)
	_, err = repo.GetByID(ctx, other.ID)
	require.NoError(t, err, "attributions of other providers are out of scope")
}

func TestAttributionRepo_LegacyProviderIDs(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()

	imported := seedProvider(t, q, "ch.a", legacy(1))
	manual := seedProvider(t, q, "ch.b", nil)
	empty := seedProvider(t, q, "ch.c", nil)
	seedAttribution(t, q, imported, "ch.a", legacy(1))
	seedAttribution(t, q, manual, "ch.b.wms", legacy(6))
	seedAttribution(t, q, manual, "ch.b.manual", nil)
	seedAttribution(t, q, empty, "ch.c.manual", nil)

	ids, err := NewAttributionRepo(q).LegacyProviderIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{imported.ID, manual.ID}, ids)
}

func TestDatasetRepo_CRUD(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()
	p := seedProvider(t, q, "ch.bafu", legacy(1))
	a := seedAttribution(t, q, p, "ch.bafu", legacy(1))

	geocat := "abc-123"
	d := seedDataset(t, q, a, "ch.bafu.wald", legacy(42))
	d.GeocatID = &geocat
	d.Title.De = "Wald"
	repo := NewDatasetRepo(q)
	require.NoError(t, repo.Update(ctx, d))

	got, ok, err := repo.FindByLegacyID(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Wald", got.Title.De)
	require.NotNil(t, got.GeocatID)
	assert.Equal(t, "abc-123", *got.GeocatID)
	assert.Equal(t, p.ID, got.ProviderID)

	got, err = repo.GetByDatasetID(ctx, "ch.bafu.wald")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	counts, err := repo.ClearLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteCounts{domain.EntityDataset: 1}, counts)
}

func TestDistributionRepo_ManagedOnly(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()
	p := seedProvider(t, q, "ch.bafu", nil)
	a := seedAttribution(t, q, p, "ch.bafu", nil)
	d := seedDataset(t, q, a, "ch.bafu.wald", nil)

	repo := NewDistributionRepo(q)
	managed := domain.NewStacDistribution("ch.bafu.wald")
	managed.DatasetID = d.ID
	require.NoError(t, repo.Insert(ctx, managed))
	stale := domain.NewStacDistribution("ch.bafu.old")
	stale.DatasetID = d.ID
	require.NoError(t, repo.Insert(ctx, stale))
	manual := &domain.PackageDistribution{PackageDistributionID: "manual", DatasetID: d.ID}
	require.NoError(t, repo.Insert(ctx, manual))

	got, ok, err := repo.FindManaged(ctx, "ch.bafu.wald")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.ManagedByStac)

	_, ok, err = repo.FindManaged(ctx, "manual")
	require.NoError(t, err)
	assert.False(t, ok)

	held, err := repo.ExistsUnmanaged(ctx, "manual")
	require.NoError(t, err)
	assert.True(t, held)
	held, err = repo.ExistsUnmanaged(ctx, "ch.bafu.wald")
	require.NoError(t, err)
	assert.False(t, held)

	counts, err := repo.DeleteManagedExcept(ctx, []string{"ch.bafu.wald"})
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteCounts{domain.EntityDistribution: 1}, counts)

	counts, err = repo.ClearManaged(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DeleteCounts{domain.EntityDistribution: 1}, counts)

	list, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "manual", list[0].PackageDistributionID)
}

func TestUserRepo_CRUD(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()
	p := seedProvider(t, q, "ch.bafu", nil)
	repo := NewUserRepo(q)

	u := &domain.User{Username: "alice", FirstName: "Alice", LastName: "Muster", Email: "alice@example.com", ProviderID: p.ID}
	require.NoError(t, repo.Insert(ctx, u))
	require.NoError(t, repo.Insert(ctx, &domain.User{
		Username: "bob", FirstName: "Bob", LastName: "B", Email: "bob@example.com", ProviderID: p.ID,
	}))

	now := time.Now().UTC().Truncate(time.Second)
	u.DeletedAt = &now
	u.Email = "alice@example.org"
	require.NoError(t, repo.Update(ctx, u))

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.org", got.Email)
	assert.False(t, got.IsActive())

	active, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].Username)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetByUsername(ctx, "carol")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestUserRepo_ProviderRestrict(t *testing.T) {
	q := setupGeoDB(t)
	ctx := context.Background()
	p := seedProvider(t, q, "ch.bafu", legacy(1))
	require.NoError(t, NewUserRepo(q).Insert(ctx, &domain.User{
		Username: "alice", Email: "alice@example.com", ProviderID: p.ID,
	}))

	_, err := NewProviderRepo(q).ClearLegacy(ctx)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}
