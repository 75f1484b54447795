package fields

import (
	"context"
	"fmt"

	"cmsops/pkg/content"
	"cmsops/pkg/directus"
)

// Step is one thing Ensure* did or found already done.
type Step struct {
	Desc    string
	Skipped bool
}

func (s Step) String() string {
	if s.Skipped {
		return "skip: " + s.Desc + " (exists)"
	}
	return s.Desc
}

type steps []Step

func (s *steps) done(format string, args ...any) {
	*s = append(*s, Step{Desc: fmt.Sprintf(format, args...)})
}

func (s *steps) skip(format string, args ...any) {
	*s = append(*s, Step{Desc: fmt.Sprintf(format, args...), Skipped: true})
}

const languagesCollection = "languages"

// EnsureLanguages creates the languages collection and its rows when
// missing.
func EnsureLanguages(ctx context.Context, api API, dryRun bool) ([]Step, error) {
	var out steps
	exists, err := api.CollectionExists(ctx, languagesCollection)
	if err != nil {
		return out, err
	}
	if exists {
		out.skip("collection %s", languagesCollection)
	} else {
		if !dryRun {
			_, err := api.CreateCollection(ctx, directus.Collection{
				Collection: languagesCollection,
				Meta:       map[string]any{"icon": "translate", "hidden": false},
				Schema:     map[string]any{},
				Fields: []directus.Field{
					{Field: "code", Type: "string", Schema: &directus.FieldSchema{IsPrimaryKey: true},
						Meta: map[string]any{"interface": "input", "readonly": false}},
					{Field: "name", Type: "string", Schema: &directus.FieldSchema{}, Meta: map[string]any{"interface": "input"}},
					{Field: "direction", Type: "string", Schema: &directus.FieldSchema{DefaultValue: "ltr"},
						Meta: map[string]any{"interface": "select-dropdown", "options": map[string]any{
							"choices": []map[string]string{{"text": "LTR", "value": "ltr"}, {"text": "RTL", "value": "rtl"}},
						}}},
				},
			})
			if err != nil {
				return out, err
			}
		}
		out.done("create collection %s", languagesCollection)
	}

	for _, l := range content.Languages {
		// a dry run against a missing collection cannot look rows up
		if exists || !dryRun {
			found, err := api.ItemExists(ctx, languagesCollection, "code", l.Code)
			if err != nil {
				return out, err
			}
			if found {
				out.skip("language %s", l.Code)
				continue
			}
		}
		if !dryRun {
			if _, err := api.CreateItem(ctx, languagesCollection, directus.Item{"code": l.Code, "name": l.Name, "direction": l.Direction}); err != nil {
				return out, err
			}
		}
		out.done("add language %s (%s)", l.Code, l.Name)
	}
	return out, nil
}

// TranslatedField is a field that moves to the junction.
type TranslatedField struct {
	Name string
	Type string // CMS type: string or text
}

type TranslationSpec struct {
	Collection string
	// ParentKeyType is the CMS type of the parent's primary key.
	ParentKeyType string
	Fields        []TranslatedField
}

// SpecFor derives the translation spec of a catalogue collection.
func SpecFor(c content.Collection) TranslationSpec {
	spec := TranslationSpec{Collection: c.Name, ParentKeyType: "integer"}
	for _, f := range c.Translated {
		typ := "text"
		if f == "name" || f == "title" {
			typ = "string"
		}
		spec.Fields = append(spec.Fields, TranslatedField{Name: f, Type: typ})
	}
	return spec
}

func fieldExists(ctx context.Context, api API, collection, field string) (bool, error) {
	_, err := api.GetField(ctx, collection, field)
	if directus.IsMissing(err) {
		return false, nil
	}
	return err == nil, err
}

// EnsureTranslations sets up <collection>_translations the way the CMS's
// own translations interface does: a junction with <collection>_id and
// languages_code, the translated fields, a "translations" alias on the
// parent and the two relations tying it together.
func EnsureTranslations(ctx context.Context, api API, spec TranslationSpec, dryRun bool) ([]Step, error) {
	var out steps
	parent := spec.Collection
	junction := parent + "_translations"
	parentKey := parent + "_id"
	keyType := spec.ParentKeyType
	if keyType == "" {
		keyType = "integer"
	}

	ok, err := api.CollectionExists(ctx, parent)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("collection %s does not exist", parent)
	}
	ok, err = api.CollectionExists(ctx, languagesCollection)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("collection %s does not exist; run languages ensure first", languagesCollection)
	}

	junctionExists, err := api.CollectionExists(ctx, junction)
	if err != nil {
		return out, err
	}
	if junctionExists {
		out.skip("collection %s", junction)
	} else {
		if !dryRun {
			_, err := api.CreateCollection(ctx, directus.Collection{
				Collection: junction,
				Meta:       map[string]any{"hidden": true, "icon": "import_export"},
				Schema:     map[string]any{},
				Fields: []directus.Field{
					{Field: "id", Type: "integer", Schema: &directus.FieldSchema{IsPrimaryKey: true, HasAutoIncrement: true},
						Meta: map[string]any{"hidden": true}},
					{Field: parentKey, Type: keyType, Schema: &directus.FieldSchema{}, Meta: map[string]any{"hidden": true}},
					{Field: "languages_code", Type: "string", Schema: &directus.FieldSchema{}, Meta: map[string]any{"hidden": true}},
				},
			})
			if err != nil {
				return out, err
			}
		}
		out.done("create collection %s", junction)
	}

	for _, f := range spec.Fields {
		exists := false
		if junctionExists {
			if exists, err = fieldExists(ctx, api, junction, f.Name); err != nil {
				return out, err
			}
		}
		if exists {
			out.skip("field %s.%s", junction, f.Name)
			continue
		}
		if !dryRun {
			iface := "input"
			if f.Type == "text" {
				iface = "input-rich-text-html"
			}
			if _, err := api.CreateField(ctx, junction, directus.Field{
				Field: f.Name, Type: f.Type, Schema: &directus.FieldSchema{},
				Meta: map[string]any{"interface": iface},
			}); err != nil {
				return out, err
			}
		}
		out.done("add field %s.%s", junction, f.Name)
	}

	aliasExists, err := fieldExists(ctx, api, parent, "translations")
	if err != nil {
		return out, err
	}
	if aliasExists {
		out.skip("field %s.translations", parent)
	} else {
		if !dryRun {
			if _, err := api.CreateField(ctx, parent, directus.Field{
				Field: "translations", Type: "alias",
				Meta: map[string]any{
					"interface": "translations",
					"special":   []string{"translations"},
					"options":   map[string]any{"languageField": "name", "defaultLanguage": content.DefaultLanguage},
				},
			}); err != nil {
				return out, err
			}
		}
		out.done("add alias %s.translations", parent)
	}

	rels, err := api.ListRelations(ctx)
	if err != nil {
		return out, err
	}
	has := func(field string) bool {
		for _, r := range rels {
			if r.Collection == junction && r.Field == field {
				return true
			}
		}
		return false
	}
	parentName, langName := parent, languagesCollection
	wanted := []directus.Relation{
		{
			Collection: junction, Field: parentKey, RelatedCollection: &parentName,
			Meta:   map[string]any{"one_field": "translations", "junction_field": "languages_code", "sort_field": nil},
			Schema: map[string]any{"on_delete": "SET NULL"},
		},
		{
			Collection: junction, Field: "languages_code", RelatedCollection: &langName,
			Meta:   map[string]any{"one_field": nil, "junction_field": parentKey, "sort_field": nil},
			Schema: map[string]any{"on_delete": "SET NULL"},
		},
	}
	for _, r := range wanted {
		if has(r.Field) {
			out.skip("relation %s.%s", r.Collection, r.Field)
			continue
		}
		if !dryRun {
			if _, err := api.CreateRelation(ctx, r); err != nil {
				return out, err
			}
		}
		out.done("add relation %s.%s -> %s", r.Collection, r.Field, *r.RelatedCollection)
	}
	return out, nil
}
