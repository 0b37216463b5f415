package stacsync

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "geoadmin-control/internal/db"
	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/reconcile"
	"geoadmin-control/internal/stac"
)

type sourceFunc func(ctx context.Context) ([]stac.Collection, error)

func (f sourceFunc) Collections(ctx context.Context) ([]stac.Collection, error) { return f(ctx) }

func staticSource(cols ...stac.Collection) sourceFunc {
	return func(context.Context) ([]stac.Collection, error) { return cols, nil }
}

func setupCatalog(t *testing.T) (*sql.DB, *domain.Dataset) {
	t.Helper()
	q, _ := internaldb.OpenTestSQLite(t)
	ctx := context.Background()
	p := &domain.Provider{
		ProviderID: "ch.bafu",
		Acronym:    domain.Translations{De: "BAFU", Fr: "OFEV", En: "FOEN"},
		Name:       domain.Translations{De: "Bundesamt für Umwelt", Fr: "Office fédéral de l'environnement", En: "Federal Office for the Environment"},
	}
	require.NoError(t, repository.NewProviderRepo(q).Insert(ctx, p))
	a := &domain.Attribution{AttributionID: "ch.bafu", Name: p.Name, Description: p.Name, ProviderID: p.ID}
	require.NoError(t, repository.NewAttributionRepo(q).Insert(ctx, a))
	d := &domain.Dataset{
		DatasetID: "ch.bafu.wald", Title: domain.PlaceholderTranslations(), Description: domain.PlaceholderTranslations(),
		ProviderID: p.ID, AttributionID: a.ID,
	}
	require.NoError(t, repository.NewDatasetRepo(q).Insert(ctx, d))
	return q, d
}

func newService(q *sql.DB, src Source) *Service {
	return New(q, src, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func runStac(t *testing.T, svc *Service, opts Options) (*reconcile.Counter, string) {
	t.Helper()
	var buf bytes.Buffer
	counter, err := svc.Run(context.Background(), opts, &buf)
	require.NoError(t, err)
	return counter, buf.String()
}

func TestRun_UpsertsManagedDistributions(t *testing.T) {
	q, ds := setupCatalog(t)
	svc := newService(q, staticSource(
		stac.Collection{ID: "ch.bafu.wald", Providers: []stac.Provider{{Name: "Federal Office for the Environment"}}},
		stac.Collection{ID: "ch.unknown"},
	))

	counter, out := runStac(t, svc, Options{Threshold: DefaultThreshold})

	assert.Equal(t, []string{"1 packagedistribution(s) added"}, counter.Report())
	assert.Contains(t, out, `WARNING: skipping collection "ch.unknown": no dataset with this id`)
	assert.NotContains(t, out, "drift")

	d, ok, err := repository.NewDistributionRepo(q).FindManaged(context.Background(), "ch.bafu.wald")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ds.ID, d.DatasetID)

	counter, _ = runStac(t, svc, Options{Threshold: DefaultThreshold})
	assert.True(t, counter.Empty())
}

func TestRun_RemovesOnlyManagedOrphans(t *testing.T) {
	q, ds := setupCatalog(t)
	ctx := context.Background()
	repo := repository.NewDistributionRepo(q)
	stale := domain.NewStacDistribution("ch.bafu.old")
	stale.DatasetID = ds.ID
	require.NoError(t, repo.Insert(ctx, stale))
	require.NoError(t, repo.Insert(ctx, &domain.PackageDistribution{PackageDistributionID: "manual", DatasetID: ds.ID}))

	counter, _ := runStac(t, newService(q, staticSource()), Options{Threshold: DefaultThreshold})

	assert.Equal(t, []string{"1 packagedistribution(s) removed"}, counter.Report())
	_, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestRun_SkipsCollectionHeldByManualDistribution(t *testing.T) {
	q, ds := setupCatalog(t)
	ctx := context.Background()
	repo := repository.NewDistributionRepo(q)
	require.NoError(t, repo.Insert(ctx, &domain.PackageDistribution{PackageDistributionID: "ch.bafu.wald", DatasetID: ds.ID}))

	counter, out := runStac(t, newService(q, staticSource(stac.Collection{ID: "ch.bafu.wald"})), Options{Threshold: DefaultThreshold})

	assert.True(t, counter.Empty())
	assert.Contains(t, out, `WARNING: skipping collection "ch.bafu.wald": distribution was created manually`)
	_, ok, err := repo.FindManaged(ctx, "ch.bafu.wald")
	require.NoError(t, err)
	assert.False(t, ok)
	_, total, err := repo.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestRun_ReportsProviderDrift(t *testing.T) {
	q, _ := setupCatalog(t)
	svc := newService(q, staticSource(stac.Collection{
		ID:        "ch.bafu.wald",
		Providers: []stac.Provider{{Name: "Federal Office of the Environment"}, {Name: "OFEV"}},
	}))

	_, out := runStac(t, svc, Options{Threshold: DefaultThreshold})
	assert.Contains(t, out, `WARNING: provider drift on collection "ch.bafu.wald": "Federal Office of the Environment"`)
	assert.NotContains(t, out, `"OFEV"`)

	_, out = runStac(t, svc, Options{Threshold: 0.9})
	assert.NotContains(t, out, "drift")
}

func TestRun_DryRun(t *testing.T) {
	q, _ := setupCatalog(t)
	svc := newService(q, staticSource(stac.Collection{ID: "ch.bafu.wald"}))

	counter, out := runStac(t, svc, Options{DryRun: true, Threshold: DefaultThreshold})

	assert.Equal(t, 1, counter.Count(domain.EntityDistribution, reconcile.OpAdded))
	assert.Contains(t, out, "dry run, aborting transaction")
	_, ok, err := repository.NewDistributionRepo(q).FindManaged(context.Background(), "ch.bafu.wald")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_SourceUnavailable(t *testing.T) {
	q, _ := setupCatalog(t)
	svc := newService(q, sourceFunc(func(context.Context) ([]stac.Collection, error) {
		return nil, domain.ErrUnavailable("stac", assert.AnError)
	}))

	_, err := svc.Run(context.Background(), Options{Threshold: DefaultThreshold}, io.Discard)
	var unavailable *domain.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestRun_InvalidThreshold(t *testing.T) {
	q, _ := setupCatalog(t)
	_, err := newService(q, staticSource()).Run(context.Background(), Options{Threshold: 1.5}, io.Discard)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}
