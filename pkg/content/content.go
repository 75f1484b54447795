// Package content describes the tourism collections the tools operate on.
package content

import "sort"

// Collection is what the tools need to know about one content type.
type Collection struct {
	Name string
	PK   string
	// TitleField is the human label; when it is translated it lives on the
	// translations rows, not on the parent.
	TitleField string
	SlugField  string
	// Translated fields are stored in <Name>_translations.
	Translated []string
	// LatField/LngField are set for collections with map coordinates.
	LatField string
	LngField string
}

func (c Collection) HasCoordinates() bool { return c.LatField != "" && c.LngField != "" }

// TranslationsCollection is the junction the CMS uses for translated fields.
func (c Collection) TranslationsCollection() string { return c.Name + "_translations" }

// ParentKeyField is the junction column that points back at the parent.
func (c Collection) ParentKeyField() string { return c.Name + "_id" }

func (c Collection) IsTranslated(field string) bool {
	for _, f := range c.Translated {
		if f == field {
			return true
		}
	}
	return false
}

var catalogue = map[string]Collection{
	"locations": {
		Name: "locations", PK: "id", TitleField: "name", SlugField: "slug",
		Translated: []string{"description"},
		LatField:   "latitude", LngField: "longitude",
	},
	"destinations": {
		Name: "destinations", PK: "id", TitleField: "name", SlugField: "slug",
		Translated: []string{"name", "description", "highlights"},
		LatField:   "latitude", LngField: "longitude",
	},
	"events": {
		Name: "events", PK: "id", TitleField: "title", SlugField: "slug",
		Translated: []string{"title", "description"},
	},
	"businesses": {
		Name: "businesses", PK: "id", TitleField: "name", SlugField: "slug",
		Translated: []string{"description"},
		LatField:   "latitude", LngField: "longitude",
	},
	"articles": {
		Name: "articles", PK: "id", TitleField: "title", SlugField: "slug",
		Translated: []string{"title", "excerpt", "content"},
	},
	"encyclopedia": {
		Name: "encyclopedia", PK: "id", TitleField: "title", SlugField: "slug",
		Translated: []string{"title", "content"},
	},
}

func Lookup(name string) (Collection, bool) {
	c, ok := catalogue[name]
	return c, ok
}

// Names lists the content collections in a stable order.
func Names() []string {
	out := make([]string, 0, len(catalogue))
	for n := range catalogue {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func All() []Collection {
	names := Names()
	out := make([]Collection, 0, len(names))
	for _, n := range names {
		out = append(out, catalogue[n])
	}
	return out
}
