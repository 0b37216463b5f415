package reconcile

import (
	"fmt"

	"geoadmin-control/internal/domain"
)

// FieldDiff describes a single field change on a record.
type FieldDiff struct {
	Field    string
	OldValue string
	NewValue string
}

// Field maps one attribute of a local record R to the value derived from a
// source row S.
type Field[R, S any] struct {
	Name  string
	apply func(rec *R, src *S) (FieldDiff, bool)
}

// Attr describes a required attribute. ptr addresses the attribute on the
// record; value derives the desired value from the source row.
func Attr[R, S any, V comparable](name string, ptr func(*R) *V, value func(*S) V) Field[R, S] {
	return Field[R, S]{
		Name: name,
		apply: func(rec *R, src *S) (FieldDiff, bool) {
			cur, want := ptr(rec), value(src)
			if *cur == want {
				return FieldDiff{}, false
			}
			d := FieldDiff{Field: name, OldValue: fmt.Sprint(*cur), NewValue: fmt.Sprint(want)}
			*cur = want
			return d, true
		},
	}
}

// OptionalAttr describes a nullable attribute. Two nil values are equal; two
// non-nil values are compared by content.
func OptionalAttr[R, S any, V comparable](name string, ptr func(*R) **V, value func(*S) *V) Field[R, S] {
	return Field[R, S]{
		Name: name,
		apply: func(rec *R, src *S) (FieldDiff, bool) {
			cur, want := ptr(rec), value(src)
			if optionalEqual(*cur, want) {
				return FieldDiff{}, false
			}
			d := FieldDiff{Field: name, OldValue: formatOptional(*cur), NewValue: formatOptional(want)}
			if want == nil {
				*cur = nil
			} else {
				v := *want
				*cur = &v
			}
			return d, true
		},
	}
}

// TranslatedAttrs expands a translated attribute into one field per language,
// named prefix_de, prefix_fr, prefix_en, prefix_it and prefix_rm.
func TranslatedAttrs[R, S any](prefix string, ptr func(*R) *domain.Translations, value func(*S) domain.Translations) []Field[R, S] {
	return []Field[R, S]{
		Attr(prefix+"_de", func(r *R) *string { return &ptr(r).De }, func(s *S) string { return value(s).De }),
		Attr(prefix+"_fr", func(r *R) *string { return &ptr(r).Fr }, func(s *S) string { return value(s).Fr }),
		Attr(prefix+"_en", func(r *R) *string { return &ptr(r).En }, func(s *S) string { return value(s).En }),
		OptionalAttr(prefix+"_it", func(r *R) **string { return &ptr(r).It }, func(s *S) *string { return value(s).It }),
		OptionalAttr(prefix+"_rm", func(r *R) **string { return &ptr(r).Rm }, func(s *S) *string { return value(s).Rm }),
	}
}

// Diff applies every field to rec and returns the changes in field order.
// An empty result means rec already matched src.
func Diff[R, S any](rec *R, src *S, fields []Field[R, S]) []FieldDiff {
	var changes []FieldDiff
	for _, f := range fields {
		if d, changed := f.apply(rec, src); changed {
			changes = append(changes, d)
		}
	}
	return changes
}

func optionalEqual[V comparable](a, b *V) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatOptional[V any](v *V) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}
