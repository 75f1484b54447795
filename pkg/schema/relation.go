package schema

import (
	"context"
	"fmt"
	"strings"

	"cmsops/pkg/database"
)

// Relation describes a many-to-one link: ManyTable.ManyField points at the
// primary key of OneTable.
type Relation struct {
	ManyTable string
	ManyField string
	OneTable  string
	OnDelete  string // SET NULL (default), CASCADE, RESTRICT, NO ACTION
}

// ForeignKeyName follows the CMS naming for generated constraints.
func ForeignKeyName(table, field string) string {
	return table + "_" + field + "_foreign"
}

var onDeleteActions = map[string]bool{
	"SET NULL":  true,
	"CASCADE":   true,
	"RESTRICT":  true,
	"NO ACTION": true,
}

// PlanEnsureRelation adds whatever part of the relation is missing: the
// foreign key, the directus_relations row and the m2o field metadata.
func (p *Planner) PlanEnsureRelation(ctx context.Context, rel Relation) (*Plan, error) {
	if err := checkIdents(rel.ManyTable, rel.ManyField, rel.OneTable); err != nil {
		return nil, err
	}
	onDelete := strings.ToUpper(strings.TrimSpace(rel.OnDelete))
	if onDelete == "" {
		onDelete = "SET NULL"
	}
	if !onDeleteActions[onDelete] {
		return nil, fmt.Errorf("unsupported on-delete action %q", rel.OnDelete)
	}
	for _, t := range []string{rel.ManyTable, rel.OneTable} {
		if err := p.requireTable(ctx, t); err != nil {
			return nil, err
		}
	}
	cols, err := p.Catalog.Columns(ctx, rel.ManyTable)
	if err != nil {
		return nil, err
	}
	if database.Lookup(cols, rel.ManyField) == nil {
		return nil, fmt.Errorf("column %s.%s does not exist; add it first", rel.ManyTable, rel.ManyField)
	}
	pk, err := p.Catalog.PrimaryKey(ctx, rel.OneTable)
	if err != nil {
		return nil, err
	}
	if len(pk.Columns) != 1 {
		return nil, fmt.Errorf("%s needs a single-column primary key", rel.OneTable)
	}

	plan := &Plan{Name: fmt.Sprintf("relation %s.%s -> %s", rel.ManyTable, rel.ManyField, rel.OneTable)}
	name := ForeignKeyName(rel.ManyTable, rel.ManyField)
	exists, err := p.Catalog.ConstraintExists(ctx, rel.ManyTable, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		plan.add(fmt.Sprintf("add foreign key %s", name),
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
				q(rel.ManyTable), q(name), q(rel.ManyField), q(rel.OneTable), q(pk.Columns[0]), onDelete))
	}
	deselect := "nullify"
	if onDelete == "CASCADE" {
		deselect = "delete"
	}
	plan.add("register relation in directus_relations", `
		INSERT INTO directus_relations (many_collection, many_field, one_collection, one_deselect_action)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM directus_relations WHERE many_collection = ? AND many_field = ?)`,
		rel.ManyTable, rel.ManyField, rel.OneTable, deselect, rel.ManyTable, rel.ManyField)
	plan.add("mark field as many-to-one", `
		UPDATE directus_fields
		SET special = 'm2o',
		    interface = CASE WHEN interface IS NULL OR interface = 'input' THEN 'select-dropdown-m2o' ELSE interface END
		WHERE collection = ? AND field = ?`, rel.ManyTable, rel.ManyField)
	return plan, nil
}
