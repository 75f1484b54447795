// Package permissions compares wanted CMS permission rules with the live
// ones and creates or patches whatever differs.
package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"cmsops/pkg/content"
	"cmsops/pkg/directus"
)

// Rule is one permission the site needs.
type Rule struct {
	Collection  string
	Action      string
	Fields      []string
	Permissions map[string]any
	Validation  map[string]any
}

// Target says whose permissions are repaired. Empty Role and Policy mean
// the public role (role = null on CMS v10).
type Target struct {
	Role   string
	Policy string
}

func (t Target) String() string {
	switch {
	case t.Policy != "":
		return "policy " + t.Policy
	case t.Role != "":
		return "role " + t.Role
	}
	return "public"
}

func (t Target) filter() directus.PermissionFilter {
	if t.Policy != "" {
		return directus.PermissionFilter{Policy: t.Policy}
	}
	if t.Role != "" {
		return directus.PermissionFilter{Role: t.Role}
	}
	return directus.PermissionFilter{PublicRole: true}
}

func (t Target) owns(p directus.Permission) bool {
	switch {
	case t.Policy != "":
		return p.Policy != nil && *p.Policy == t.Policy
	case t.Role != "":
		return p.Role != nil && *p.Role == t.Role
	}
	return p.Role == nil && p.Policy == nil
}

func (t Target) apply(p *directus.Permission) {
	if t.Policy != "" {
		policy := t.Policy
		p.Policy = &policy
	}
	if t.Role != "" {
		role := t.Role
		p.Role = &role
	}
}

// Published limits reads to published rows.
var Published = map[string]any{"status": map[string]any{"_eq": "published"}}

// PublicRead gives read access to every field of the named collections.
// Content collections are limited to published rows; their translation
// junctions are readable as a whole.
func PublicRead(collections ...string) []Rule {
	var rules []Rule
	for _, name := range collections {
		c, ok := content.Lookup(name)
		if !ok {
			rules = append(rules, Rule{Collection: name, Action: "read", Fields: []string{"*"}})
			continue
		}
		rules = append(rules, Rule{Collection: c.Name, Action: "read", Fields: []string{"*"}, Permissions: Published})
		if len(c.Translated) > 0 {
			rules = append(rules, Rule{Collection: c.TranslationsCollection(), Action: "read", Fields: []string{"*"}})
		}
	}
	return rules
}

// SiteRules is everything the public site reads.
func SiteRules() []Rule {
	rules := PublicRead(content.Names()...)
	return append(rules,
		Rule{Collection: "languages", Action: "read", Fields: []string{"*"}},
		Rule{Collection: "directus_files", Action: "read", Fields: []string{"*"}},
	)
}

type Kind string

const (
	Create    Kind = "create"
	Update    Kind = "update"
	Unchanged Kind = "unchanged"
)

type Change struct {
	Kind     Kind
	Rule     Rule
	Existing *directus.Permission
	// Patch holds only the keys that differ (Update).
	Patch map[string]any
}

func (c Change) String() string {
	switch c.Kind {
	case Create:
		return fmt.Sprintf("create %s on %s", c.Rule.Action, c.Rule.Collection)
	case Update:
		keys := make([]string, 0, len(c.Patch))
		for k := range c.Patch {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("update %s on %s (id %d): %v", c.Rule.Action, c.Rule.Collection, c.Existing.ID, keys)
	}
	return fmt.Sprintf("keep %s on %s", c.Rule.Action, c.Rule.Collection)
}

// Plan pairs each wanted rule with the target's existing row for the same
// collection and action. When several rows match, the first is compared.
func Plan(existing []directus.Permission, desired []Rule, target Target) []Change {
	changes := make([]Change, 0, len(desired))
	for _, r := range desired {
		var found *directus.Permission
		for i := range existing {
			p := &existing[i]
			if p.Collection == r.Collection && p.Action == r.Action && target.owns(*p) {
				found = p
				break
			}
		}
		if found == nil {
			changes = append(changes, Change{Kind: Create, Rule: r})
			continue
		}
		patch := diff(*found, r)
		if len(patch) == 0 {
			changes = append(changes, Change{Kind: Unchanged, Rule: r, Existing: found})
			continue
		}
		changes = append(changes, Change{Kind: Update, Rule: r, Existing: found, Patch: patch})
	}
	return changes
}

func diff(p directus.Permission, r Rule) map[string]any {
	patch := map[string]any{}
	if !sameFields(p.Fields, r.Fields) {
		patch["fields"] = r.Fields
	}
	if !sameJSON(p.Permissions, r.Permissions) {
		patch["permissions"] = r.Permissions
	}
	if !sameJSON(p.Validation, r.Validation) {
		patch["validation"] = r.Validation
	}
	return patch
}

func sameFields(a, b []string) bool {
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return reflect.DeepEqual(as, bs) || (len(as) == 0 && len(bs) == 0)
}

// sameJSON compares filters after a JSON round trip; nil and {} are equal.
func sameJSON(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
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

// API is the part of the CMS client Repair needs.
type API interface {
	ListPermissions(ctx context.Context, f directus.PermissionFilter) ([]directus.Permission, error)
	CreatePermission(ctx context.Context, p directus.Permission) (*directus.Permission, error)
	UpdatePermission(ctx context.Context, id int, patch map[string]any) (*directus.Permission, error)
}

type Result struct {
	Changes   []Change
	Created   int
	Updated   int
	Unchanged int
}

// Repair creates missing rules and patches drifted ones. In dry-run mode it
// only reports the plan. It stops at the first failing write.
func Repair(ctx context.Context, api API, desired []Rule, target Target, dryRun bool) (Result, error) {
	existing, err := api.ListPermissions(ctx, target.filter())
	if err != nil {
		return Result{}, fmt.Errorf("list permissions for %s: %w", target, err)
	}
	res := Result{Changes: Plan(existing, desired, target)}
	for _, ch := range res.Changes {
		switch ch.Kind {
		case Unchanged:
			res.Unchanged++
			continue
		case Create:
			if !dryRun {
				p := directus.Permission{
					Collection:  ch.Rule.Collection,
					Action:      ch.Rule.Action,
					Fields:      ch.Rule.Fields,
					Permissions: ch.Rule.Permissions,
					Validation:  ch.Rule.Validation,
				}
				target.apply(&p)
				if _, err := api.CreatePermission(ctx, p); err != nil {
					return res, err
				}
			}
			res.Created++
		case Update:
			if !dryRun {
				if _, err := api.UpdatePermission(ctx, ch.Existing.ID, ch.Patch); err != nil {
					return res, err
				}
			}
			res.Updated++
		}
	}
	return res, nil
}
