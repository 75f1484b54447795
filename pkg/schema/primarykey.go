package schema

import (
	"context"
	"fmt"

	"cmsops/pkg/database"
)

type ChangePK struct {
	Table  string
	Column string // optional; must match the current key when set
	To     string // uuid, integer or bigint
}

const tempSuffix = "__pk_new"

type keyRef struct {
	fk      database.ForeignKey
	column  string
	notNull bool
}

// PlanChangePrimaryKey converts a single-column primary key to another type
// and carries every foreign key that points at it along.
//
// Conversions Postgres can cast (between integer widths, text to uuid or
// integer) alter the columns in place. Between integer and uuid there is no
// cast, so new key values are generated into a temporary column, copied to
// referencing rows through a join, and swapped in.
func (p *Planner) PlanChangePrimaryKey(ctx context.Context, req ChangePK) (*Plan, error) {
	to, err := NormalizeKeyType(req.To)
	if err != nil {
		return nil, err
	}
	if err := checkIdents(req.Table); err != nil {
		return nil, err
	}
	if err := p.requireTable(ctx, req.Table); err != nil {
		return nil, err
	}
	pk, err := p.Catalog.PrimaryKey(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	if len(pk.Columns) != 1 {
		return nil, fmt.Errorf("%s has a composite primary key (%v); not supported", req.Table, pk.Columns)
	}
	key := pk.Columns[0]
	if req.Column != "" && req.Column != key {
		return nil, fmt.Errorf("%s is not the primary key of %s (key is %s)", req.Column, req.Table, key)
	}
	cols, err := p.Catalog.Columns(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	col := database.Lookup(cols, key)
	if col == nil {
		return nil, fmt.Errorf("primary key column %s.%s not found", req.Table, key)
	}
	from, err := keyTypeOf(col.UDTName)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%s.%s is already %s: %w", req.Table, key, to, ErrNoChange)
	}

	fks, err := p.Catalog.ReferencingKeys(ctx, req.Table, key)
	if err != nil {
		return nil, err
	}
	refs := make([]keyRef, 0, len(fks))
	for _, fk := range fks {
		if len(fk.Columns) != 1 {
			return nil, fmt.Errorf("foreign key %s has several columns; not supported", fk.Name)
		}
		rcols, err := p.Catalog.Columns(ctx, fk.Table)
		if err != nil {
			return nil, err
		}
		rc := database.Lookup(rcols, fk.Columns[0])
		refs = append(refs, keyRef{fk: fk, column: fk.Columns[0], notNull: rc != nil && !rc.IsNullable()})
	}

	plan := &Plan{
		Name:        fmt.Sprintf("change primary key %s.%s %s -> %s", req.Table, key, from, to),
		Destructive: true,
	}
	for _, r := range refs {
		plan.add(fmt.Sprintf("drop foreign key %s on %s", r.fk.Name, r.fk.Table),
			fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", q(r.fk.Table), q(r.fk.Name)))
	}

	castable := (numeric(from) && numeric(to)) || (from == keyText && to != keyText)
	if castable {
		castKey(plan, req.Table, key, from, to, refs)
	} else {
		remapKey(plan, req.Table, key, pk.Constraint, to, refs)
	}

	for _, r := range refs {
		plan.add(fmt.Sprintf("recreate foreign key %s on %s", r.fk.Name, r.fk.Table),
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", q(r.fk.Table), q(r.fk.Name), fkDefinition(r.fk)))
	}

	var special any
	if to == KeyUUID {
		special = "uuid"
	}
	plan.add("update key field metadata", `
		UPDATE directus_fields SET special = ?, interface = 'input', readonly = true, hidden = true
		WHERE collection = ? AND field = ?`, special, req.Table, key)
	return plan, nil
}

func castKey(plan *Plan, table, key, from, to string, refs []keyRef) {
	if from != keyText {
		// serial defaults keep working across integer widths
		plan.add(fmt.Sprintf("alter %s.%s to %s", table, key, to),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", q(table), q(key), to, q(key), to))
	} else {
		plan.add(fmt.Sprintf("drop text default of %s.%s", table, key),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", q(table), q(key)))
		plan.add(fmt.Sprintf("alter %s.%s to %s", table, key, to),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", q(table), q(key), to, q(key), to))
		if to == KeyUUID {
			plan.add("default new keys to gen_random_uuid()",
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT gen_random_uuid()", q(table), q(key)))
		}
	}
	for _, r := range refs {
		plan.add(fmt.Sprintf("alter %s.%s to %s", r.fk.Table, r.column, to),
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s", q(r.fk.Table), q(r.column), to, q(r.column), to))
	}
}

func remapKey(plan *Plan, table, key, constraint, to string, refs []keyRef) {
	tmp := key + tempSuffix
	if to == KeyUUID {
		plan.add(fmt.Sprintf("add %s.%s with generated uuids", table, tmp),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s uuid NOT NULL DEFAULT gen_random_uuid()", q(table), q(tmp)))
	} else {
		plan.add(fmt.Sprintf("add %s.%s as identity", table, tmp),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s GENERATED BY DEFAULT AS IDENTITY", q(table), q(tmp), to))
	}
	for _, r := range refs {
		rtmp := r.column + tempSuffix
		plan.add(fmt.Sprintf("add %s.%s", r.fk.Table, rtmp),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", q(r.fk.Table), q(rtmp), to))
		plan.add(fmt.Sprintf("backfill %s.%s from %s", r.fk.Table, rtmp, table),
			fmt.Sprintf("UPDATE %s AS r SET %s = p.%s FROM %s AS p WHERE r.%s = p.%s",
				q(r.fk.Table), q(rtmp), q(tmp), q(table), q(r.column), q(key)))
	}
	if constraint != "" {
		plan.add(fmt.Sprintf("drop primary key %s", constraint),
			fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", q(table), q(constraint)))
	}
	plan.add(fmt.Sprintf("swap %s.%s for %s", table, key, tmp),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", q(table), q(key)))
	plan.add(fmt.Sprintf("rename %s.%s to %s", table, tmp, key),
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", q(table), q(tmp), q(key)))
	for _, r := range refs {
		rtmp := r.column + tempSuffix
		plan.add(fmt.Sprintf("swap %s.%s for %s", r.fk.Table, r.column, rtmp),
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", q(r.fk.Table), q(r.column)))
		plan.add(fmt.Sprintf("rename %s.%s to %s", r.fk.Table, rtmp, r.column),
			fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", q(r.fk.Table), q(rtmp), q(r.column)))
		if r.notNull {
			plan.add(fmt.Sprintf("restore NOT NULL on %s.%s", r.fk.Table, r.column),
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", q(r.fk.Table), q(r.column)))
		}
	}
	name := constraint
	if name == "" {
		name = table + "_pkey"
	}
	plan.add(fmt.Sprintf("add primary key %s", name),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", q(table), q(name), q(key)))
}

// fkDefinition prefers the catalog's own definition, which keeps options
// such as DEFERRABLE.
func fkDefinition(fk database.ForeignKey) string {
	if fk.Definition != "" {
		return fk.Definition
	}
	def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", q(fk.Columns[0]), q(fk.RefTable), q(fk.RefColumns[0]))
	if fk.OnDelete != "" {
		def += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		def += " ON UPDATE " + fk.OnUpdate
	}
	return def
}
