// Package catalog implements read access to the geodata catalog.
package catalog

import (
	"context"
	"database/sql"

	"geoadmin-control/internal/db/repository"
	"geoadmin-control/internal/domain"
)

// Service lists and fetches catalog records.
type Service struct {
	providers     *repository.ProviderRepo
	attributions  *repository.AttributionRepo
	datasets      *repository.DatasetRepo
	distributions *repository.DistributionRepo
}

// New creates a Service reading from db.
func New(db *sql.DB) *Service {
	return &Service{
		providers:     repository.NewProviderRepo(db),
		attributions:  repository.NewAttributionRepo(db),
		datasets:      repository.NewDatasetRepo(db),
		distributions: repository.NewDistributionRepo(db),
	}
}

// ListProviders returns a page of providers.
func (s *Service) ListProviders(ctx context.Context, page domain.PageRequest) ([]domain.Provider, int64, error) {
	return s.providers.List(ctx, page)
}

// GetProvider returns a provider by its external identifier.
func (s *Service) GetProvider(ctx context.Context, providerID string) (*domain.Provider, error) {
	return s.providers.GetByProviderID(ctx, providerID)
}

// ListAttributions returns a page of attributions.
func (s *Service) ListAttributions(ctx context.Context, page domain.PageRequest) ([]domain.Attribution, int64, error) {
	return s.attributions.List(ctx, page)
}

// GetAttribution returns an attribution by its external identifier.
func (s *Service) GetAttribution(ctx context.Context, attributionID string) (*domain.Attribution, error) {
	return s.attributions.GetByAttributionID(ctx, attributionID)
}

// ListDatasets returns a page of datasets.
func (s *Service) ListDatasets(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	return s.datasets.List(ctx, page)
}

// GetDataset returns a dataset by its external identifier.
func (s *Service) GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error) {
	return s.datasets.GetByDatasetID(ctx, datasetID)
}

// ListDistributions returns a page of package distributions.
func (s *Service) ListDistributions(ctx context.Context, page domain.PageRequest) ([]domain.PackageDistribution, int64, error) {
	return s.distributions.List(ctx, page)
}
