package schema

import (
	"context"
	"fmt"
	"io"

	"cmsops/models"
	"cmsops/pkg/database"

	"gorm.io/gorm"
)

// Drift is what differs between a collection's CMS metadata rows and its
// table.
type Drift struct {
	Collection string
	// Registered is false when directus_collections has no row.
	Registered bool
	// Folder collections have a metadata row but no table.
	Folder              bool
	FieldsWithoutColumn []string
	ColumnsWithoutField []string
	Relations           []models.Relation
}

func (d *Drift) Clean() bool {
	return d.Registered && len(d.FieldsWithoutColumn) == 0 && len(d.ColumnsWithoutField) == 0
}

// Inspect reads directus_collections, directus_fields and
// directus_relations for one collection and compares them with the table.
func Inspect(ctx context.Context, db *gorm.DB, cat database.Catalog, collection string) (*Drift, error) {
	if err := checkIdents(collection); err != nil {
		return nil, err
	}
	d := &Drift{Collection: collection}
	db = db.WithContext(ctx)

	var rows []models.Collection
	if err := db.Where("collection = ?", collection).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read directus_collections: %w", err)
	}
	d.Registered = len(rows) > 0

	exists, err := cat.TableExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		if !d.Registered {
			return nil, fmt.Errorf("%s: no table and no collection row", collection)
		}
		d.Folder = true
		return d, nil
	}

	var fields []models.Field
	if err := db.Where("collection = ?", collection).Order("id").Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("read directus_fields: %w", err)
	}
	cols, err := cat.Columns(ctx, collection)
	if err != nil {
		return nil, err
	}
	registered := map[string]bool{}
	for _, f := range fields {
		registered[f.Field] = true
		if !f.IsAlias() && database.Lookup(cols, f.Field) == nil {
			d.FieldsWithoutColumn = append(d.FieldsWithoutColumn, f.Field)
		}
	}
	for _, c := range cols {
		if !registered[c.Name] {
			d.ColumnsWithoutField = append(d.ColumnsWithoutField, c.Name)
		}
	}

	if err := db.Where("many_collection = ? OR one_collection = ?", collection, collection).
		Order("id").Find(&d.Relations).Error; err != nil {
		return nil, fmt.Errorf("read directus_relations: %w", err)
	}
	return d, nil
}

func (d *Drift) Print(w io.Writer) {
	switch {
	case !d.Registered:
		fmt.Fprintf(w, "%s: table without a directus_collections row\n", d.Collection)
	case d.Folder:
		fmt.Fprintf(w, "%s: folder (no table)\n", d.Collection)
		return
	default:
		fmt.Fprintf(w, "%s:\n", d.Collection)
	}
	for _, f := range d.FieldsWithoutColumn {
		fmt.Fprintf(w, " - field %s has no column\n", f)
	}
	for _, c := range d.ColumnsWithoutField {
		fmt.Fprintf(w, " - column %s is not registered as a field\n", c)
	}
	for _, r := range d.Relations {
		one := "-"
		if r.OneCollection != nil {
			one = *r.OneCollection
		}
		fmt.Fprintf(w, " - relation %s.%s -> %s\n", r.ManyCollection, r.ManyField, one)
	}
	if d.Clean() {
		fmt.Fprintln(w, "metadata matches the table")
	}
}
