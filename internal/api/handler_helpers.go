package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"geoadmin-control/internal/domain"
)

// Page wraps a list response.
type Page[T any] struct {
	Items         []T    `json:"items"`
	Total         int64  `json:"total"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// pageFromQuery extracts a PageRequest from the max_results and page_token
// query parameters.
func pageFromQuery(r *http.Request) (domain.PageRequest, error) {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, domain.ErrValidation("max_results must be a non-negative integer")
		}
		p.MaxResults = n
	}
	return p, nil
}

func newPage[S, T any](items []S, total int64, page domain.PageRequest, conv func(*S) T) Page[T] {
	out := make([]T, len(items))
	for i := range items {
		out[i] = conv(&items[i])
	}
	return Page[T]{
		Items:         out,
		Total:         total,
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// === Mapping helpers ===

// Translations is a text in the platform languages.
type Translations struct {
	De string  `json:"de"`
	Fr string  `json:"fr"`
	En string  `json:"en"`
	It *string `json:"it"`
	Rm *string `json:"rm"`
}

func translationsToAPI(t domain.Translations) Translations {
	return Translations{De: t.De, Fr: t.Fr, En: t.En, It: t.It, Rm: t.Rm}
}

// Provider is the API representation of a provider.
type Provider struct {
	ID         string       `json:"id"`
	ProviderID string       `json:"provider_id"`
	Acronym    Translations `json:"acronym"`
	Name       Translations `json:"name"`
	LegacyID   *int64       `json:"legacy_id,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func providerToAPI(p *domain.Provider) Provider {
	return Provider{
		ID:         p.ID,
		ProviderID: p.ProviderID,
		Acronym:    translationsToAPI(p.Acronym),
		Name:       translationsToAPI(p.Name),
		LegacyID:   p.LegacyID,
		UpdatedAt:  p.UpdatedAt,
	}
}

// Attribution is the API representation of an attribution.
type Attribution struct {
	ID            string       `json:"id"`
	AttributionID string       `json:"attribution_id"`
	Name          Translations `json:"name"`
	Description   Translations `json:"description"`
	ProviderID    string       `json:"provider_id"`
	LegacyID      *int64       `json:"legacy_id,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func attributionToAPI(a *domain.Attribution) Attribution {
	return Attribution{
		ID:            a.ID,
		AttributionID: a.AttributionID,
		Name:          translationsToAPI(a.Name),
		Description:   translationsToAPI(a.Description),
		ProviderID:    a.ProviderID,
		LegacyID:      a.LegacyID,
		UpdatedAt:     a.UpdatedAt,
	}
}

// Dataset is the API representation of a dataset.
type Dataset struct {
	ID            string       `json:"id"`
	DatasetID     string       `json:"dataset_id"`
	GeocatID      *string      `json:"geocat_id"`
	Title         Translations `json:"title"`
	Description   Translations `json:"description"`
	ProviderID    string       `json:"provider_id"`
	AttributionID string       `json:"attribution_id"`
	LegacyID      *int64       `json:"legacy_id,omitempty"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func datasetToAPI(d *domain.Dataset) Dataset {
	return Dataset{
		ID:            d.ID,
		DatasetID:     d.DatasetID,
		GeocatID:      d.GeocatID,
		Title:         translationsToAPI(d.Title),
		Description:   translationsToAPI(d.Description),
		ProviderID:    d.ProviderID,
		AttributionID: d.AttributionID,
		LegacyID:      d.LegacyID,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Distribution is the API representation of a package distribution.
type Distribution struct {
	ID                    string    `json:"id"`
	PackageDistributionID string    `json:"package_distribution_id"`
	ManagedByStac         bool      `json:"managed_by_stac"`
	DatasetID             string    `json:"dataset_id"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func distributionToAPI(d *domain.PackageDistribution) Distribution {
	return Distribution{
		ID:                    d.ID,
		PackageDistributionID: d.PackageDistributionID,
		ManagedByStac:         d.ManagedByStac,
		DatasetID:             d.DatasetID,
		UpdatedAt:             d.UpdatedAt,
	}
}

// User is the API representation of a user.
type User struct {
	Username   string     `json:"username"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	ProviderID string     `json:"provider_id"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func userToAPI(u *domain.User) User {
	return User{
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		ProviderID: u.ProviderID,
		DeletedAt:  u.DeletedAt,
	}
}
