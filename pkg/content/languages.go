package content

type Language struct {
	Code      string `json:"code" yaml:"code"`
	Name      string `json:"name" yaml:"name"`
	Direction string `json:"direction" yaml:"direction"`
}

const (
	Indonesian = "id-ID"
	English    = "en-US"
	// DefaultLanguage is the language editors write first.
	DefaultLanguage = Indonesian
)

var Languages = []Language{
	{Code: Indonesian, Name: "Bahasa Indonesia", Direction: "ltr"},
	{Code: English, Name: "English", Direction: "ltr"},
}

func LanguageCodes() []string {
	out := make([]string, len(Languages))
	for i, l := range Languages {
		out[i] = l.Code
	}
	return out
}

// Gap is an item missing one or more translations.
type Gap struct {
	ID      any
	Missing []string
}

// TranslationGaps inspects items fetched with translations.languages_code
// and reports which languages each one lacks. A translation row counts when
// its language code is present, whatever its text.
func TranslationGaps(items []map[string]any, pkField string, languages []string) []Gap {
	var gaps []Gap
	for _, it := range items {
		have := map[string]bool{}
		rows, _ := it["translations"].([]any)
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if code := languageCode(row); code != "" {
				have[code] = true
			}
		}
		var missing []string
		for _, l := range languages {
			if !have[l] {
				missing = append(missing, l)
			}
		}
		if len(missing) > 0 {
			gaps = append(gaps, Gap{ID: it[pkField], Missing: missing})
		}
	}
	return gaps
}

// TranslationFor returns the translation row for lang, or nil.
func TranslationFor(item map[string]any, lang string) map[string]any {
	rows, _ := item["translations"].([]any)
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if languageCode(row) == lang {
			return row
		}
	}
	return nil
}

// languageCode reads languages_code as a plain key or as the expanded m2o.
func languageCode(row map[string]any) string {
	switch code := row["languages_code"].(type) {
	case string:
		return code
	case map[string]any:
		s, _ := code["code"].(string)
		return s
	}
	return ""
}
