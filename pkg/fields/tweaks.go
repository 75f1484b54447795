// Package fields maintains CMS field metadata: interface tweaks kept in
// YAML, the languages collection, and translation junctions.
package fields

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"sort"

	"cmsops/pkg/directus"

	"gopkg.in/yaml.v3"
)

// Tweak sets meta keys on one field.
type Tweak struct {
	Collection string         `yaml:"collection"`
	Field      string         `yaml:"field"`
	Meta       map[string]any `yaml:"meta"`
}

// LoadTweaks reads a YAML list of tweaks.
func LoadTweaks(path string) ([]Tweak, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tweaks []Tweak
	if err := yaml.Unmarshal(raw, &tweaks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, t := range tweaks {
		if t.Collection == "" || t.Field == "" {
			return nil, fmt.Errorf("%s: entry %d needs collection and field", path, i+1)
		}
		if len(t.Meta) == 0 {
			return nil, fmt.Errorf("%s: %s.%s has no meta keys", path, t.Collection, t.Field)
		}
	}
	return tweaks, nil
}

// API is the part of the CMS client this package uses.
type API interface {
	GetField(ctx context.Context, collection, field string) (*directus.Field, error)
	CreateField(ctx context.Context, collection string, f directus.Field) (*directus.Field, error)
	UpdateField(ctx context.Context, collection, field string, meta map[string]any) (*directus.Field, error)
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, col directus.Collection) (*directus.Collection, error)
	ListRelations(ctx context.Context) ([]directus.Relation, error)
	CreateRelation(ctx context.Context, r directus.Relation) (*directus.Relation, error)
	ItemExists(ctx context.Context, collection, pkField string, id any) (bool, error)
	CreateItem(ctx context.Context, collection string, item directus.Item) (directus.Item, error)
}

type TweakResult struct {
	Patched   []string // collection.field: keys
	Unchanged []string
	Missing   []string
}

// ApplyTweaks patches only the meta keys whose value differs. Fields that do
// not exist are reported and skipped.
func ApplyTweaks(ctx context.Context, api API, tweaks []Tweak, dryRun bool) (TweakResult, error) {
	var res TweakResult
	for _, t := range tweaks {
		name := t.Collection + "." + t.Field
		f, err := api.GetField(ctx, t.Collection, t.Field)
		if directus.IsMissing(err) {
			res.Missing = append(res.Missing, name)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("get %s: %w", name, err)
		}
		patch := metaDiff(f.Meta, t.Meta)
		if len(patch) == 0 {
			res.Unchanged = append(res.Unchanged, name)
			continue
		}
		if !dryRun {
			if _, err := api.UpdateField(ctx, t.Collection, t.Field, patch); err != nil {
				return res, err
			}
		}
		res.Patched = append(res.Patched, fmt.Sprintf("%s: %v", name, sortedKeys(patch)))
	}
	return res, nil
}

func metaDiff(current, want map[string]any) map[string]any {
	patch := map[string]any{}
	for k, v := range want {
		if !equalJSON(current[k], v) {
			patch[k] = v
		}
	}
	return patch
}

// equalJSON compares values as the CMS would store them, so YAML ints and
// JSON float64s compare equal.
func equalJSON(a, b any) bool {
	ja, err1 := json.Marshal(a)
	jb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	var va, vb any
	_ = json.Unmarshal(ja, &va)
	_ = json.Unmarshal(jb, &vb)
	return reflect.DeepEqual(va, vb)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
