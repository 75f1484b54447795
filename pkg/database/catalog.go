package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var ErrNoPrimaryKey = errors.New("table has no primary key")

// Catalog answers the questions schema plans need about the live database.
type Catalog interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	PrimaryKey(ctx context.Context, table string) (PrimaryKey, error)
	ReferencingKeys(ctx context.Context, table, column string) ([]ForeignKey, error)
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)
	ConstraintExists(ctx context.Context, table, name string) (bool, error)
}

var _ Catalog = (*DB)(nil)

type Column struct {
	Name     string         `db:"column_name"`
	DataType string         `db:"data_type"`
	UDTName  string         `db:"udt_name"`
	Nullable string         `db:"is_nullable"`
	Default  sql.NullString `db:"column_default"`
}

// IsNullable converts information_schema's YES/NO.
func (c Column) IsNullable() bool { return c.Nullable == "YES" }

type PrimaryKey struct {
	Constraint string
	Columns    []string
}

type ForeignKey struct {
	Name       string
	Table      string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnUpdate   string
	OnDelete   string
	Definition string
}

func (d *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var ok bool
	err := d.X.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = current_schema() AND tablename = $1)`, table)
	if err != nil {
		return false, fmt.Errorf("query pg_tables for %s: %w", table, err)
	}
	return ok, nil
}

func (d *DB) Columns(ctx context.Context, table string) ([]Column, error) {
	var cols []Column
	err := d.X.SelectContext(ctx, &cols, `
		SELECT column_name, data_type, udt_name, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}

// Lookup returns the named column, or nil when cols has no such column.
func Lookup(cols []Column, name string) *Column {
	for i := range cols {
		if cols[i].Name == name {
			return &cols[i]
		}
	}
	return nil
}

func (d *DB) PrimaryKey(ctx context.Context, table string) (PrimaryKey, error) {
	var row struct {
		Name    string         `db:"name"`
		Columns pq.StringArray `db:"columns"`
	}
	err := d.X.GetContext(ctx, &row, `
		SELECT con.conname AS name,
		       array_agg(att.attname::text ORDER BY u.ord) AS columns
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = rel.relnamespace
		JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
		WHERE con.contype = 'p' AND ns.nspname = current_schema() AND rel.relname = $1
		GROUP BY con.conname`, table)
	if errors.Is(err, sql.ErrNoRows) {
		return PrimaryKey{}, fmt.Errorf("%s: %w", table, ErrNoPrimaryKey)
	}
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("primary key of %s: %w", table, err)
	}
	return PrimaryKey{Constraint: row.Name, Columns: row.Columns}, nil
}

const foreignKeysSQL = `
	SELECT con.conname AS name,
	       rel.relname AS table_name,
	       array_agg(att.attname::text ORDER BY u.ord) AS columns,
	       confrel.relname AS ref_table,
	       array_agg(att2.attname::text ORDER BY u.ord) AS ref_columns,
	       con.confupdtype::text AS on_update,
	       con.confdeltype::text AS on_delete,
	       pg_get_constraintdef(con.oid) AS definition
	FROM pg_constraint con
	JOIN pg_class rel ON rel.oid = con.conrelid
	JOIN pg_namespace ns ON ns.oid = rel.relnamespace
	JOIN pg_class confrel ON confrel.oid = con.confrelid
	JOIN unnest(con.conkey) WITH ORDINALITY AS u(attnum, ord) ON true
	JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = u.attnum
	JOIN unnest(con.confkey) WITH ORDINALITY AS v(attnum, ord) ON v.ord = u.ord
	JOIN pg_attribute att2 ON att2.attrelid = con.confrelid AND att2.attnum = v.attnum
	WHERE con.contype = 'f' AND ns.nspname = current_schema() %s
	GROUP BY con.oid, con.conname, rel.relname, confrel.relname, con.confupdtype, con.confdeltype
	ORDER BY rel.relname, con.conname`

type fkRow struct {
	Name       string         `db:"name"`
	Table      string         `db:"table_name"`
	Columns    pq.StringArray `db:"columns"`
	RefTable   string         `db:"ref_table"`
	RefColumns pq.StringArray `db:"ref_columns"`
	OnUpdate   string         `db:"on_update"`
	OnDelete   string         `db:"on_delete"`
	Definition string         `db:"definition"`
}

func (r fkRow) key() ForeignKey {
	return ForeignKey{
		Name:       r.Name,
		Table:      r.Table,
		Columns:    r.Columns,
		RefTable:   r.RefTable,
		RefColumns: r.RefColumns,
		OnUpdate:   fkAction(r.OnUpdate),
		OnDelete:   fkAction(r.OnDelete),
		Definition: r.Definition,
	}
}

// fkAction translates pg_constraint's one-letter action codes.
func fkAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

func (d *DB) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	return d.foreignKeys(ctx, "")
}

// ReferencingKeys lists foreign keys pointing at table.column.
func (d *DB) ReferencingKeys(ctx context.Context, table, column string) ([]ForeignKey, error) {
	all, err := d.foreignKeys(ctx, "AND confrel.relname = $1", table)
	if err != nil {
		return nil, err
	}
	var out []ForeignKey
	for _, fk := range all {
		for _, c := range fk.RefColumns {
			if c == column {
				out = append(out, fk)
				break
			}
		}
	}
	return out, nil
}

func (d *DB) foreignKeys(ctx context.Context, where string, args ...any) ([]ForeignKey, error) {
	var rows []fkRow
	if err := d.X.SelectContext(ctx, &rows, fmt.Sprintf(foreignKeysSQL, where), args...); err != nil {
		return nil, fmt.Errorf("query constraints: %w", err)
	}
	out := make([]ForeignKey, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.key())
	}
	return out, nil
}

func (d *DB) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	var ok bool
	err := d.X.GetContext(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM pg_constraint con
			JOIN pg_class rel ON rel.oid = con.conrelid
			JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
			WHERE nsp.nspname = current_schema() AND rel.relname = $1 AND con.conname = $2)`, table, name)
	if err != nil {
		return false, fmt.Errorf("query pg_constraint: %w", err)
	}
	return ok, nil
}

// String renders a key the way the fks command prints it.
func (fk ForeignKey) String() string {
	return fmt.Sprintf("%s: %s(%s) -> %s(%s) on delete %s",
		fk.Name, fk.Table, strings.Join(fk.Columns, ","), fk.RefTable, strings.Join(fk.RefColumns, ","), strings.ToLower(fk.OnDelete))
}
