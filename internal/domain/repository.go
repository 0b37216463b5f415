package domain

import (
	"context"
)

// Entity names used in reports, metrics and delete counts.
const (
	EntityProvider     = "provider"
	EntityAttribution  = "attribution"
	EntityDataset      = "dataset"
	EntityDistribution = "packagedistribution"
	EntityUser         = "user"
)

// DeleteCounts maps an entity name to the number of rows deleted, including
// rows removed by cascading foreign keys.
type DeleteCounts map[string]int

// Add merges other into c.
func (c DeleteCounts) Add(other DeleteCounts) {
	for k, v := range other {
		c[k] += v
	}
}

// ProviderRepository provides persistence for providers.
type ProviderRepository interface {
	GetByID(ctx context.Context, id string) (*Provider, error)
	GetByProviderID(ctx context.Context, providerID string) (*Provider, error)
	FindByLegacyID(ctx context.Context, legacyID int64) (*Provider, bool, error)
	List(ctx context.Context, page PageRequest) ([]Provider, int64, error)
	Insert(ctx context.Context, p *Provider) error
	Update(ctx context.Context, p *Provider) error
	DeleteLegacyExcept(ctx context.Context, keep []int64) (DeleteCounts, error)
	ClearLegacy(ctx context.Context) (DeleteCounts, error)
}

// AttributionRepository provides persistence for attributions.
type AttributionRepository interface {
	GetByID(ctx context.Context, id string) (*Attribution, error)
	GetByAttributionID(ctx context.Context, attributionID string) (*Attribution, error)
	FindByLegacyID(ctx context.Context, legacyID int64) (*Attribution, bool, error)
	LegacyProviderIDs(ctx context.Context) ([]string, error)
	List(ctx context.Context, page PageRequest) ([]Attribution, int64, error)
	Insert(ctx context.Context, a *Attribution) error
	Update(ctx context.Context, a *Attribution) error
	// DeleteLegacyExcept removes imported attributions of providerID whose
	// legacy id is not in keep. An empty providerID removes across providers.
	DeleteLegacyExcept(ctx context.Context, providerID string, keep []int64) (DeleteCounts, error)
	ClearLegacy(ctx context.Context) (DeleteCounts, error)
}

// DatasetRepository provides persistence for datasets.
type DatasetRepository interface {
	GetByID(ctx context.Context, id string) (*Dataset, error)
	GetByDatasetID(ctx context.Context, datasetID string) (*Dataset, error)
	FindByLegacyID(ctx context.Context, legacyID int64) (*Dataset, bool, error)
	List(ctx context.Context, page PageRequest) ([]Dataset, int64, error)
	Insert(ctx context.Context, d *Dataset) error
	Update(ctx context.Context, d *Dataset) error
	DeleteLegacyExcept(ctx context.Context, keep []int64) (DeleteCounts, error)
	ClearLegacy(ctx context.Context) (DeleteCounts, error)
}

// DistributionRepository provides persistence for package distributions.
type DistributionRepository interface {
	FindManaged(ctx context.Context, packageDistributionID string) (*PackageDistribution, bool, error)
	ExistsUnmanaged(ctx context.Context, packageDistributionID string) (bool, error)
	List(ctx context.Context, page PageRequest) ([]PackageDistribution, int64, error)
	Insert(ctx context.Context, d *PackageDistribution) error
	Update(ctx context.Context, d *PackageDistribution) error
	DeleteManagedExcept(ctx context.Context, keep []string) (DeleteCounts, error)
	ClearManaged(ctx context.Context) (DeleteCounts, error)
}

// UserRepository provides persistence for managed users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, page PageRequest) ([]User, int64, error)
	// ListAll returns every user, soft-deleted ones included.
	ListAll(ctx context.Context) ([]User, error)
	Insert(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
}

// Directory is the external identity provider holding remote user accounts.
// Operations on absent or unmanaged users return false without an error;
// transport failures are reported as *UnavailableError.
type Directory interface {
	ListUsers(ctx context.Context) ([]RemoteUser, error)
	GetUser(ctx context.Context, username string, managedOnly bool) (*RemoteUser, error)
	CreateUser(ctx context.Context, username, displayName, email string) (bool, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	UpdateUser(ctx context.Context, username, displayName, email string) (bool, error)
	EnableUser(ctx context.Context, username string) (bool, error)
	DisableUser(ctx context.Context, username string) (bool, error)
}
