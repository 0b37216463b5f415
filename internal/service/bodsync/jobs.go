package bodsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geoadmin-control/internal/bod"
	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/reconcile"
)

func (r *run) providerJob() reconcile.Job[int64, domain.Provider, bod.Organisation] {
	fields := []reconcile.Field[domain.Provider, bod.Organisation]{
		reconcile.Attr("provider_id",
			func(p *domain.Provider) *string { return &p.ProviderID },
			func(o *bod.Organisation) string { return o.Attribution }),
	}
	fields = append(fields, reconcile.TranslatedAttrs("acronym",
		func(p *domain.Provider) *domain.Translations { return &p.Acronym },
		(*bod.Organisation).Acronym)...)
	fields = append(fields, reconcile.TranslatedAttrs("name",
		func(p *domain.Provider) *domain.Translations { return &p.Name },
		(*bod.Organisation).Name)...)

	return reconcile.Job[int64, domain.Provider, bod.Organisation]{
		Entity:   domain.EntityProvider,
		Label:    "Provider",
		Rows:     r.source.Organisations,
		Accept:   func(o *bod.Organisation) bool { return o.Dots() == 1 },
		Key:      func(o *bod.Organisation) int64 { return o.ID },
		Prepare: func(ctx context.Context, o *bod.Organisation) (string, error) {
			manual, err := heldByManual(r.providers.GetByProviderID(ctx, o.Attribution))
			if err != nil || !manual {
				return "", err
			}
			return fmt.Sprintf("skipping organisation %d: provider %q was created manually", o.ID, o.Attribution), nil
		},
		Fields:   fields,
		Find:     r.providers.FindByLegacyID,
		Blank:    domain.NewLegacyProvider,
		Insert:   r.providers.Insert,
		Update:   r.providers.Update,
		RecordID: func(p *domain.Provider) string { return p.ID },
		DeleteOrphans: func(ctx context.Context, _ string, keep []int64) (domain.DeleteCounts, error) {
			return r.providers.DeleteLegacyExcept(ctx, keep)
		},
		Clear: r.providers.ClearLegacy,
	}
}

// attributionRow is an organisation with its resolved provider and name.
type attributionRow struct {
	org        bod.Organisation
	providerID string
	name       domain.Translations
}

// parentCode returns the attribution code of the provider owning code:
// the code itself for "ch.bafu", the first two segments for "ch.bafu.wald".
func parentCode(code string) (string, bool) {
	parts := strings.Split(code, ".")
	switch len(parts) {
	case 2:
		return code, true
	case 3:
		return parts[0] + "." + parts[1], true
	default:
		return "", false
	}
}

func (r *run) attributionJob() reconcile.Job[int64, domain.Attribution, attributionRow] {
	fields := []reconcile.Field[domain.Attribution, attributionRow]{
		reconcile.Attr("attribution_id",
			func(a *domain.Attribution) *string { return &a.AttributionID },
			func(s *attributionRow) string { return s.org.Attribution }),
		reconcile.Attr("provider",
			func(a *domain.Attribution) *string { return &a.ProviderID },
			func(s *attributionRow) string { return s.providerID }),
	}
	fields = append(fields, reconcile.TranslatedAttrs("name",
		func(a *domain.Attribution) *domain.Translations { return &a.Name },
		func(s *attributionRow) domain.Translations { return s.name })...)
	fields = append(fields, reconcile.TranslatedAttrs("description",
		func(a *domain.Attribution) *domain.Translations { return &a.Description },
		func(s *attributionRow) domain.Translations { return s.org.Name() })...)

	return reconcile.Job[int64, domain.Attribution, attributionRow]{
		Entity: domain.EntityAttribution,
		Label:  "Attribution",
		Rows: func(ctx context.Context) ([]attributionRow, error) {
			orgs, err := r.source.Organisations(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]attributionRow, len(orgs))
			for i := range orgs {
				rows[i] = attributionRow{org: orgs[i]}
			}
			return rows, nil
		},
		Key:      func(s *attributionRow) int64 { return s.org.ID },
		Prepare:  r.prepareAttribution,
		Fields:   fields,
		Find:     r.attributions.FindByLegacyID,
		Blank:    domain.NewLegacyAttribution,
		Insert:   r.attributions.Insert,
		Update:   r.attributions.Update,
		RecordID: func(a *domain.Attribution) string { return a.ID },
		Scope:    func(a *domain.Attribution) string { return a.ProviderID },
		Scopes:        r.attributions.LegacyProviderIDs,
		DeleteOrphans: r.attributions.DeleteLegacyExcept,
		Clear:         r.attributions.ClearLegacy,
	}
}

func (r *run) prepareAttribution(ctx context.Context, s *attributionRow) (string, error) {
	code := s.org.Attribution
	parent, ok := parentCode(code)
	if !ok {
		return fmt.Sprintf("skipping organisation %d: attribution code %q has an unexpected shape", s.org.ID, code), nil
	}
	manual, err := heldByManual(r.attributions.GetByAttributionID(ctx, code))
	if err != nil {
		return "", err
	}
	if manual {
		return fmt.Sprintf("skipping organisation %d: attribution %q was created manually", s.org.ID, code), nil
	}
	provider, err := r.providers.GetByProviderID(ctx, parent)
	if err != nil {
		if isNotFound(err) {
			return fmt.Sprintf("skipping attribution %q: provider %q does not exist", code, parent), nil
		}
		return "", err
	}
	s.providerID = provider.ID

	s.name = domain.PlaceholderTranslations()
	tr, ok, err := r.source.Translation(ctx, code)
	if err != nil {
		return "", err
	}
	if ok {
		s.name = tr.Translations()
	}
	return "", nil
}

// datasetRow is a BOD dataset with its resolved links and metadata.
type datasetRow struct {
	ds            bod.Dataset
	providerID    string
	attributionID string
	title         domain.Translations
	description   domain.Translations
}

func (s *datasetRow) geocatID() *string {
	if !s.ds.GeocatID.Valid || s.ds.GeocatID.String == "" {
		return nil
	}
	v := s.ds.GeocatID.String
	return &v
}

func (r *run) datasetJob() reconcile.Job[int64, domain.Dataset, datasetRow] {
	fields := []reconcile.Field[domain.Dataset, datasetRow]{
		reconcile.Attr("dataset_id",
			func(d *domain.Dataset) *string { return &d.DatasetID },
			func(s *datasetRow) string { return s.ds.DatasetID }),
		reconcile.OptionalAttr("geocat_id",
			func(d *domain.Dataset) **string { return &d.GeocatID },
			(*datasetRow).geocatID),
		reconcile.Attr("provider",
			func(d *domain.Dataset) *string { return &d.ProviderID },
			func(s *datasetRow) string { return s.providerID }),
		reconcile.Attr("attribution",
			func(d *domain.Dataset) *string { return &d.AttributionID },
			func(s *datasetRow) string { return s.attributionID }),
	}
	fields = append(fields, reconcile.TranslatedAttrs("title",
		func(d *domain.Dataset) *domain.Translations { return &d.Title },
		func(s *datasetRow) domain.Translations { return s.title })...)
	fields = append(fields, reconcile.TranslatedAttrs("description",
		func(d *domain.Dataset) *domain.Translations { return &d.Description },
		func(s *datasetRow) domain.Translations { return s.description })...)

	return reconcile.Job[int64, domain.Dataset, datasetRow]{
		Entity: domain.EntityDataset,
		Label:  "Dataset",
		Rows: func(ctx context.Context) ([]datasetRow, error) {
			datasets, err := r.source.Datasets(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]datasetRow, len(datasets))
			for i := range datasets {
				rows[i] = datasetRow{ds: datasets[i]}
			}
			return rows, nil
		},
		Key:      func(s *datasetRow) int64 { return s.ds.ID },
		Prepare:  r.prepareDataset,
		Fields:   fields,
		Find:     r.datasets.FindByLegacyID,
		Blank:    domain.NewLegacyDataset,
		Insert:   r.datasets.Insert,
		Update:   r.datasets.Update,
		RecordID: func(d *domain.Dataset) string { return d.ID },
		DeleteOrphans: func(ctx context.Context, _ string, keep []int64) (domain.DeleteCounts, error) {
			return r.datasets.DeleteLegacyExcept(ctx, keep)
		},
		Clear: r.datasets.ClearLegacy,
	}
}

func (r *run) prepareDataset(ctx context.Context, s *datasetRow) (string, error) {
	manual, err := heldByManual(r.datasets.GetByDatasetID(ctx, s.ds.DatasetID))
	if err != nil {
		return "", err
	}
	if manual {
		return fmt.Sprintf("skipping dataset %q: it was created manually", s.ds.DatasetID), nil
	}
	attribution, ok, err := r.attributions.FindByLegacyID(ctx, s.ds.OrganisationID)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("skipping dataset %q: attribution of organisation %d does not exist",
			s.ds.DatasetID, s.ds.OrganisationID), nil
	}
	s.attributionID = attribution.ID
	s.providerID = attribution.ProviderID

	found, err := r.datasetMetadata(ctx, s)
	if err != nil {
		return "", err
	}
	if !found && r.opts.StrictMetadata {
		return fmt.Sprintf("skipping dataset %q: no geocat publication nor translation", s.ds.DatasetID), nil
	}
	return "", nil
}

// datasetMetadata fills title and description from the geocat publication,
// falling back to the translation of the dataset id and then to placeholders.
// It reports whether any source was found.
func (r *run) datasetMetadata(ctx context.Context, s *datasetRow) (bool, error) {
	if id := s.geocatID(); id != nil {
		pub, ok, err := r.source.GeocatPublication(ctx, *id)
		if err != nil {
			return false, err
		}
		if ok {
			s.title, s.description = pub.Title(), pub.Description()
			return true, nil
		}
	}

	tr, ok, err := r.source.Translation(ctx, s.ds.DatasetID)
	if err != nil {
		return false, err
	}
	if ok {
		s.title = tr.Translations()
		s.description = tr.Translations()
		return true, nil
	}

	s.title, s.description = domain.PlaceholderTranslations(), domain.PlaceholderTranslations()
	return false, nil
}

// heldByManual reports whether a lookup by external identifier found a
// manually created record. Importing a row with that identifier would
// violate its uniqueness.
func heldByManual(rec interface{ Manual() bool }, err error) (bool, error) {
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return rec.Manual(), nil
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
