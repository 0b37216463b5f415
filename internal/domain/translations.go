package domain

// Placeholder is stored in required fields whose value is unknown, both for
// freshly resolved records and for translations missing in a foreign source.
const Placeholder = "undefined"

// Translations holds a text in the platform languages. German, French and
// English are mandatory; Italian and Romansh are optional.
type Translations struct {
	De string
	Fr string
	En string
	It *string
	Rm *string
}

// PlaceholderTranslations returns translations filled with Placeholder.
func PlaceholderTranslations() Translations {
	return Translations{De: Placeholder, Fr: Placeholder, En: Placeholder}
}

// Values returns every non-empty translation, mandatory languages first.
func (t Translations) Values() []string {
	out := make([]string, 0, 5)
	for _, v := range []string{t.De, t.Fr, t.En} {
		if v != "" {
			out = append(out, v)
		}
	}
	for _, v := range []*string{t.It, t.Rm} {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}

// Lang returns the translation for a two-letter language code.
func (t Translations) Lang(code string) (string, bool) {
	switch code {
	case "de":
		return t.De, true
	case "fr":
		return t.Fr, true
	case "en":
		return t.En, true
	case "it":
		if t.It != nil {
			return *t.It, true
		}
	case "rm":
		if t.Rm != nil {
			return *t.Rm, true
		}
	}
	return "", false
}
