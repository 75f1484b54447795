package schema

import (
	"context"
	"errors"
	"fmt"

	"cmsops/pkg/database"

	"github.com/lib/pq"
)

type AddColumn struct {
	Table     string
	Column    string
	Type      string // CMS field type, see FieldTypes
	NotNull   bool
	Default   string
	Interface string
	Note      string
}

// PlanAddColumn adds the column if missing and registers it with the CMS.
// An existing column only gets the metadata row.
func (p *Planner) PlanAddColumn(ctx context.Context, req AddColumn) (*Plan, error) {
	if err := checkIdents(req.Table, req.Column); err != nil {
		return nil, err
	}
	ft, ok := fieldTypes[req.Type]
	if !ok {
		_, err := SQLType(req.Type)
		return nil, err
	}
	if err := p.requireTable(ctx, req.Table); err != nil {
		return nil, err
	}
	cols, err := p.Catalog.Columns(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Name: fmt.Sprintf("add column %s.%s", req.Table, req.Column)}
	if database.Lookup(cols, req.Column) == nil {
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", q(req.Table), q(req.Column), ft.sql)
		if req.Default != "" {
			ddl += " DEFAULT " + pq.QuoteLiteral(req.Default)
		}
		if req.NotNull {
			ddl += " NOT NULL"
		}
		plan.add(fmt.Sprintf("add column %s %s to %s", req.Column, ft.sql, req.Table), ddl)
	}

	iface := req.Interface
	if iface == "" {
		iface = ft.iface
	}
	var special, note any
	if ft.special != "" {
		special = ft.special
	}
	if req.Note != "" {
		note = req.Note
	}
	plan.add(fmt.Sprintf("register %s.%s in directus_fields", req.Table, req.Column), `
		INSERT INTO directus_fields (collection, field, special, interface, note, readonly, hidden, width, required)
		SELECT ?, ?, ?, ?, ?, false, false, 'full', ?
		WHERE NOT EXISTS (SELECT 1 FROM directus_fields WHERE collection = ? AND field = ?)`,
		req.Table, req.Column, special, iface, note, req.NotNull, req.Table, req.Column)
	return plan, nil
}

type DropColumn struct {
	Table   string
	Column  string
	Cascade bool
}

var ErrPrimaryKeyColumn = errors.New("refusing to drop the primary key column")

// PlanDropColumn removes the column together with its field, relation and
// permission references.
func (p *Planner) PlanDropColumn(ctx context.Context, req DropColumn) (*Plan, error) {
	if err := checkIdents(req.Table, req.Column); err != nil {
		return nil, err
	}
	if err := p.requireTable(ctx, req.Table); err != nil {
		return nil, err
	}
	cols, err := p.Catalog.Columns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	if database.Lookup(cols, req.Column) == nil {
		return nil, fmt.Errorf("%s.%s: %w", req.Table, req.Column, ErrNoChange)
	}
	pk, err := p.Catalog.PrimaryKey(ctx, req.Table)
	if err != nil && !errors.Is(err, database.ErrNoPrimaryKey) {
		return nil, err
	}
	for _, c := range pk.Columns {
		if c == req.Column {
			return nil, fmt.Errorf("%s.%s: %w", req.Table, req.Column, ErrPrimaryKeyColumn)
		}
	}
	refs, err := p.Catalog.ReferencingKeys(ctx, req.Table, req.Column)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 && !req.Cascade {
		return nil, fmt.Errorf("%s.%s is referenced by %s; pass --cascade to drop those constraints too", req.Table, req.Column, refs[0].Name)
	}

	plan := &Plan{Name: fmt.Sprintf("drop column %s.%s", req.Table, req.Column), Destructive: true}
	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", q(req.Table), q(req.Column))
	if req.Cascade {
		ddl += " CASCADE"
	}
	plan.add(fmt.Sprintf("drop column %s from %s", req.Column, req.Table), ddl)
	plan.add("delete field metadata",
		`DELETE FROM directus_fields WHERE collection = ? AND field = ?`, req.Table, req.Column)
	plan.add("delete relations owned by the field",
		`DELETE FROM directus_relations WHERE many_collection = ? AND many_field = ?`, req.Table, req.Column)
	plan.add("unset reverse alias on relations",
		`UPDATE directus_relations SET one_field = NULL WHERE one_collection = ? AND one_field = ?`, req.Table, req.Column)
	plan.add("remove field from permission field lists", `
		UPDATE directus_permissions
		SET fields = array_to_string(array_remove(string_to_array(fields, ','), ?), ',')
		WHERE collection = ? AND fields IS NOT NULL`, req.Column, req.Table)
	return plan, nil
}

// PlanDropConstraint drops a named constraint.
func (p *Planner) PlanDropConstraint(ctx context.Context, table, name string) (*Plan, error) {
	if err := checkIdents(table, name); err != nil {
		return nil, err
	}
	ok, err := p.Catalog.ConstraintExists(ctx, table, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("constraint %s on %s: %w", name, table, ErrNoChange)
	}
	plan := &Plan{Name: "drop constraint " + name, Destructive: true}
	plan.add(fmt.Sprintf("drop constraint %s on %s", name, table),
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", q(table), q(name)))
	return plan, nil
}
