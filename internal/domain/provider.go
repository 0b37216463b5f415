package domain

import "time"

// Provider is an organisation publishing geodata on the platform.
type Provider struct {
	ID         string
	ProviderID string // external identifier, e.g. "ch.bafu"
	Acronym    Translations
	Name       Translations
	LegacyID   *int64 // BOD organisation id; nil for manually created providers
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Manual reports whether the provider was created outside the BOD import.
func (p *Provider) Manual() bool { return p.LegacyID == nil }

// NewLegacyProvider returns an unsaved provider linked to a BOD organisation,
// with placeholder values in every required field.
func NewLegacyProvider(legacyID int64) *Provider {
	return &Provider{
		ID:         NewID(),
		ProviderID: Placeholder,
		Acronym:    PlaceholderTranslations(),
		Name:       PlaceholderTranslations(),
		LegacyID:   &legacyID,
	}
}
