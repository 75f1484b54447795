// Package report prints how many items of a content collection were
// created in a month, per workflow status.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"cmsops/pkg/content"
	"cmsops/pkg/database"

	"gorm.io/gorm"
)

type StatusCount struct {
	Status string
	Count  int64
}

type Row struct {
	ID          string
	Status      string
	Slug        string
	DateCreated time.Time
}

type Result struct {
	Collection string
	Month      string
	Start, End time.Time
	ByStatus   []StatusCount
	Total      int64
	Rows       []Row
}

// MonthRange parses YYYY-MM into [start, end) in UTC.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Build queries the collection's table directly; date_created is set by
// the CMS on every item.
func Build(ctx context.Context, db *gorm.DB, collection, month string, list bool) (*Result, error) {
	c, ok := content.Lookup(collection)
	if !ok {
		return nil, fmt.Errorf("unknown content collection %q (known: %v)", collection, content.Names())
	}
	start, end, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	table := database.QuoteIdent(c.Name)
	res := &Result{Collection: c.Name, Month: month, Start: start, End: end}

	err = db.WithContext(ctx).Raw(fmt.Sprintf(`
		SELECT COALESCE(status, '(none)') AS status, COUNT(*) AS count
		FROM %s WHERE date_created >= ? AND date_created < ?
		GROUP BY 1 ORDER BY 1`, table), start, end).Scan(&res.ByStatus).Error
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", c.Name, err)
	}
	for _, s := range res.ByStatus {
		res.Total += s.Count
	}

	if list {
		err = db.WithContext(ctx).Raw(fmt.Sprintf(`
			SELECT %s::text AS id, COALESCE(status, '') AS status, COALESCE(%s, '') AS slug, date_created
			FROM %s WHERE date_created >= ? AND date_created < ?
			ORDER BY date_created, 1`, database.QuoteIdent(c.PK), database.QuoteIdent(c.SlugField), table), start, end).
			Scan(&res.Rows).Error
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", c.Name, err)
		}
	}
	return res, nil
}

func (r *Result) Print(w io.Writer) {
	fmt.Fprintf(w, "Report for collection=%s month=%s (UTC):\n", r.Collection, r.Month)
	for _, s := range r.ByStatus {
		fmt.Fprintf(w, "  status=%s count=%d\n", s.Status, s.Count)
	}
	fmt.Fprintf(w, "  total=%d\n", r.Total)
	for _, row := range r.Rows {
		fmt.Fprintf(w, "%s|%s|%s|%s\n", row.ID, row.Status, row.Slug, row.DateCreated.Format(time.RFC3339))
	}
}

// RunReport builds and prints the report.
func RunReport(ctx context.Context, db *gorm.DB, w io.Writer, collection, month string, list bool) error {
	res, err := Build(ctx, db, collection, month, list)
	if err != nil {
		return err
	}
	res.Print(w)
	return nil
}

// CurrentMonth is the default month in YYYY-MM form.
func CurrentMonth() string { return time.Now().UTC().Format("2006-01") }
