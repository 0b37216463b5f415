package domain

import "time"

// Dataset is a published geodata set.
type Dataset struct {
	ID            string
	DatasetID     string // external identifier, e.g. "ch.bafu.auen-vegetationskarten"
	GeocatID      *string
	Title         Translations
	Description   Translations
	ProviderID    string
	AttributionID string
	LegacyID      *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Manual reports whether the dataset was created outside the BOD import.
func (d *Dataset) Manual() bool { return d.LegacyID == nil }

// NewLegacyDataset returns an unsaved dataset linked to a BOD dataset.
func NewLegacyDataset(legacyID int64) *Dataset {
	return &Dataset{
		ID:          NewID(),
		DatasetID:   Placeholder,
		Title:       PlaceholderTranslations(),
		Description: PlaceholderTranslations(),
		LegacyID:    &legacyID,
	}
}

// PackageDistribution is a downloadable distribution of a dataset. Records with
// ManagedByStac set are owned by the STAC synchronisation.
type PackageDistribution struct {
	ID                    string
	PackageDistributionID string // STAC collection id
	ManagedByStac         bool
	DatasetID             string // local key of the dataset
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewStacDistribution returns an unsaved distribution owned by the STAC sync.
func NewStacDistribution(collectionID string) *PackageDistribution {
	return &PackageDistribution{
		ID:                    NewID(),
		PackageDistributionID: collectionID,
		ManagedByStac:         true,
	}
}
