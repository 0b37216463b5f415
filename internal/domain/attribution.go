package domain

import "time"

// Attribution is the credit line under which a provider's data is published.
type Attribution struct {
	ID            string
	AttributionID string // external identifier, e.g. "ch.bafu" or "ch.bafu.wald"
	Name          Translations
	Description   Translations
	ProviderID    string // local key of the owning provider
	LegacyID      *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Manual reports whether the attribution was created outside the BOD import.
func (a *Attribution) Manual() bool { return a.LegacyID == nil }

// NewLegacyAttribution returns an unsaved attribution linked to a BOD organisation.
func NewLegacyAttribution(legacyID int64) *Attribution {
	return &Attribution{
		ID:            NewID(),
		AttributionID: Placeholder,
		Name:          PlaceholderTranslations(),
		Description:   PlaceholderTranslations(),
		LegacyID:      &legacyID,
	}
}
