package api

import (
	"context"

	"geoadmin-control/internal/domain"
)

type mockCatalog struct {
	ListProvidersFn     func(ctx context.Context, page domain.PageRequest) ([]domain.Provider, int64, error)
	GetProviderFn       func(ctx context.Context, providerID string) (*domain.Provider, error)
	ListAttributionsFn  func(ctx context.Context, page domain.PageRequest) ([]domain.Attribution, int64, error)
	GetAttributionFn    func(ctx context.Context, attributionID string) (*domain.Attribution, error)
	ListDatasetsFn      func(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error)
	GetDatasetFn        func(ctx context.Context, datasetID string) (*domain.Dataset, error)
	ListDistributionsFn func(ctx context.Context, page domain.PageRequest) ([]domain.PackageDistribution, int64, error)
}

func (m *mockCatalog) ListProviders(ctx context.Context, page domain.PageRequest) ([]domain.Provider, int64, error) {
	if m.ListProvidersFn != nil {
		return m.ListProvidersFn(ctx, page)
	}
	panic("unexpected call to ListProviders")
}

func (m *mockCatalog) GetProvider(ctx context.Context, providerID string) (*domain.Provider, error) {
	if m.GetProviderFn != nil {
		return m.GetProviderFn(ctx, providerID)
	}
	panic("unexpected call to GetProvider")
}

func (m *mockCatalog) ListAttributions(ctx context.Context, page domain.PageRequest) ([]domain.Attribution, int64, error) {
	if m.ListAttributionsFn != nil {
		return m.ListAttributionsFn(ctx, page)
	}
	panic("unexpected call to ListAttributions")
}

func (m *mockCatalog) GetAttribution(ctx context.Context, attributionID string) (*domain.Attribution, error) {
	if m.GetAttributionFn != nil {
		return m.GetAttributionFn(ctx, attributionID)
	}
	panic("unexpected call to GetAttribution")
}

func (m *mockCatalog) ListDatasets(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	if m.ListDatasetsFn != nil {
		return m.ListDatasetsFn(ctx, page)
	}
	panic("unexpected call to ListDatasets")
}

func (m *mockCatalog) GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error) {
	if m.GetDatasetFn != nil {
		return m.GetDatasetFn(ctx, datasetID)
	}
	panic("unexpected call to GetDataset")
}

func (m *mockCatalog) ListDistributions(ctx context.Context, page domain.PageRequest) ([]domain.PackageDistribution, int64, error) {
	if m.ListDistributionsFn != nil {
		return m.ListDistributionsFn(ctx, page)
	}
	panic("unexpected call to ListDistributions")
}

type mockUsers struct {
	ListFn   func(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error)
	GetFn    func(ctx context.Context, username string) (*domain.User, error)
	CreateFn func(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	UpdateFn func(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.User, error)
	DeleteFn func(ctx context.Context, username string) error
}

func (m *mockUsers) List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to List")
}

func (m *mockUsers) Get(ctx context.Context, username string) (*domain.User, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, username)
	}
	panic("unexpected call to Get")
}

func (m *mockUsers) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, req)
	}
	panic("unexpected call to Create")
}

func (m *mockUsers) Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, username, req)
	}
	panic("unexpected call to Update")
}

func (m *mockUsers) Delete(ctx context.Context, username string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, username)
	}
	panic("unexpected call to Delete")
}
