// Package diagnose checks a CMS instance and its content for the problems
// operators usually chase by hand.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"cmsops/pkg/content"
	"cmsops/pkg/database"
	"cmsops/pkg/directus"

	"go.uber.org/zap"
)

type Status string

const (
	OK   Status = "ok"
	Warn Status = "warn"
	Fail Status = "FAIL"
)

type Check struct {
	Name   string
	Status Status
	Detail string
}

type Report struct {
	Checks []Check
}

func (r *Report) add(name string, st Status, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, Status: st, Detail: fmt.Sprintf(format, args...)})
}

// Failed is true when any check failed. Warnings do not count.
func (r *Report) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == Fail {
			return true
		}
	}
	return false
}

func (r *Report) Count(st Status) int {
	n := 0
	for _, c := range r.Checks {
		if c.Status == st {
			n++
		}
	}
	return n
}

func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCHECK\tDETAIL")
	for _, c := range r.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Status, c.Name, c.Detail)
	}
	fmt.Fprintf(tw, "\n%d ok, %d warnings, %d failed\n", r.Count(OK), r.Count(Warn), r.Count(Fail))
	return tw.Flush()
}

// API is the part of the CMS client diagnostics read from.
type API interface {
	Health(ctx context.Context) (*directus.Health, error)
	ListCollections(ctx context.Context) ([]directus.Collection, error)
	ExpiresAt() time.Time
	CountItems(ctx context.Context, collection string, filter map[string]any) (int, error)
	ListAllItems(ctx context.Context, collection string, q directus.Query) ([]directus.Item, error)
}

type Deps struct {
	API API
	// Catalog enables the database checks when set.
	Catalog     database.Catalog
	Collections []content.Collection
	Languages   []string
	Log         *zap.Logger
	Now         func() time.Time
}

// examples caps how many item ids a finding lists.
const examples = 5

// Run performs every check and returns the report. The error is only set
// when diagnostics themselves could not run; problems found are checks.
func Run(ctx context.Context, d Deps) (*Report, error) {
	if d.API == nil {
		return nil, errors.New("diagnose: no CMS client")
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Collections == nil {
		d.Collections = content.All()
	}
	if d.Languages == nil {
		d.Languages = content.LanguageCodes()
	}
	r := &Report{}

	h, err := d.API.Health(ctx)
	switch {
	case err != nil:
		r.add("server health", Fail, "%v", err)
	case !h.OK():
		r.add("server health", Fail, "status %s%s", h.Status, failingChecks(h))
	default:
		r.add("server health", OK, "status %s", h.Status)
	}

	cols, err := d.API.ListCollections(ctx)
	if err != nil {
		r.add("authentication", Fail, "%v", err)
		return r, nil
	}
	if exp := d.API.ExpiresAt(); exp.IsZero() {
		r.add("authentication", OK, "static token")
	} else {
		r.add("authentication", OK, "token valid for %s", exp.Sub(d.Now()).Round(time.Second))
	}

	known := map[string]directus.Collection{}
	for _, c := range cols {
		known[c.Collection] = c
	}
	for _, c := range d.Collections {
		if err := checkCollection(ctx, d, r, c, known); err != nil {
			return r, err
		}
	}
	if d.Catalog != nil {
		if err := checkTables(ctx, d, r, cols); err != nil {
			return r, err
		}
	}
	return r, nil
}

func failingChecks(h *directus.Health) string {
	var names []string
	for name, results := range h.Checks {
		for _, raw := range results {
			if strings.Contains(string(raw), `"status":"error"`) {
				names = append(names, name)
				break
			}
		}
	}
	if len(names) == 0 {
		return ""
	}
	return " (" + strings.Join(names, ", ") + ")"
}

func checkCollection(ctx context.Context, d Deps, r *Report, c content.Collection, known map[string]directus.Collection) error {
	if _, ok := known[c.Name]; !ok {
		r.add(c.Name, Fail, "collection missing")
		return nil
	}
	n, err := d.API.CountItems(ctx, c.Name, nil)
	if err != nil {
		r.add(c.Name, Fail, "count: %v", err)
		return nil
	}
	r.add(c.Name, OK, "%d items", n)
	if n == 0 {
		return nil
	}

	if c.SlugField != "" {
		missing, err := d.API.CountItems(ctx, c.Name, map[string]any{c.SlugField: map[string]any{"_empty": true}})
		switch {
		case err != nil:
			r.add(c.Name+" slugs", Warn, "count: %v", err)
		case missing > 0:
			r.add(c.Name+" slugs", Warn, "%d items without %s; run backfill_slugs", missing, c.SlugField)
		default:
			r.add(c.Name+" slugs", OK, "all set")
		}
	}

	if len(c.Translated) > 0 {
		if _, ok := known[c.TranslationsCollection()]; !ok {
			r.add(c.Name+" translations", Warn, "%s missing; run translations ensure", c.TranslationsCollection())
		} else {
			items, err := d.API.ListAllItems(ctx, c.Name, directus.Query{Fields: []string{c.PK, "translations.languages_code"}})
			if err != nil {
				return fmt.Errorf("list %s translations: %w", c.Name, err)
			}
			gaps := content.TranslationGaps(items, c.PK, d.Languages)
			if len(gaps) > 0 {
				ids := make([]string, 0, examples)
				for i, g := range gaps {
					if i == examples {
						break
					}
					ids = append(ids, fmt.Sprintf("%v:%s", g.ID, strings.Join(g.Missing, "+")))
				}
				r.add(c.Name+" translations", Warn, "%d of %d items incomplete (%s)", len(gaps), len(items), strings.Join(ids, ", "))
			} else {
				r.add(c.Name+" translations", OK, "%d items complete", len(items))
			}
		}
	}

	if c.HasCoordinates() {
		items, err := d.API.ListAllItems(ctx, c.Name, directus.Query{Fields: []string{c.PK, c.LatField, c.LngField}})
		if err != nil {
			return fmt.Errorf("list %s coordinates: %w", c.Name, err)
		}
		var unset, invalid []string
		for _, it := range items {
			id := fmt.Sprint(it[c.PK])
			lat, errLat := content.ParseCoordinate(it[c.LatField])
			lng, errLng := content.ParseCoordinate(it[c.LngField])
			switch {
			case errors.Is(errLat, content.ErrNoCoordinate) && errors.Is(errLng, content.ErrNoCoordinate):
				unset = append(unset, id)
			case errLat != nil || errLng != nil || !content.ValidLatLng(lat, lng):
				invalid = append(invalid, id)
			}
		}
		switch {
		case len(invalid) > 0:
			r.add(c.Name+" coordinates", Warn, "%d invalid (%s), %d unset", len(invalid), head(invalid), len(unset))
		case len(unset) > 0:
			r.add(c.Name+" coordinates", Warn, "%d unset", len(unset))
		default:
			r.add(c.Name+" coordinates", OK, "all valid")
		}
	}
	return nil
}

// checkTables reports CMS collections whose table is gone.
func checkTables(ctx context.Context, d Deps, r *Report, cols []directus.Collection) error {
	var orphans []string
	checked := 0
	for _, c := range cols {
		if c.IsFolder() || strings.HasPrefix(c.Collection, "directus_") {
			continue
		}
		checked++
		ok, err := d.Catalog.TableExists(ctx, c.Collection)
		if err != nil {
			return err
		}
		if !ok {
			orphans = append(orphans, c.Collection)
		}
	}
	if len(orphans) > 0 {
		r.add("database tables", Fail, "collections without a table: %s", strings.Join(orphans, ", "))
		return nil
	}
	r.add("database tables", OK, "%d collections backed by tables", checked)
	d.Log.Debug("table check done", zap.Int("collections", checked))
	return nil
}

func head(ids []string) string {
	if len(ids) > examples {
		return strings.Join(ids[:examples], ", ") + ", ..."
	}
	return strings.Join(ids, ", ")
}
