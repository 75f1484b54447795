package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := Wrap(sqlDB, nil)
	require.NoError(t, err)
	return db, mock
}

func TestTableExists(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM pg_tables`).
		WithArgs("destinations").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := db.TableExists(context.Background(), "destinations")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestColumns(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM information_schema.columns`).
		WithArgs("locations").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "udt_name", "is_nullable", "column_default"}).
			AddRow("id", "integer", "int4", "NO", "nextval('locations_id_seq'::regclass)").
			AddRow("name", "character varying", "varchar", "YES", nil))

	cols, err := db.Columns(context.Background(), "locations")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "integer", cols[0].DataType)
	assert.False(t, cols[0].IsNullable())
	assert.True(t, cols[1].IsNullable())
	assert.False(t, cols[1].Default.Valid)

	assert.NotNil(t, Lookup(cols, "name"))
	assert.Nil(t, Lookup(cols, "slug"))
}

func TestPrimaryKey(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`con.contype = 'p'`).
			WithArgs("events").
			WillReturnRows(sqlmock.NewRows([]string{"name", "columns"}).AddRow("events_pkey", "{id}"))

		pk, err := db.PrimaryKey(context.Background(), "events")
		require.NoError(t, err)
		assert.Equal(t, "events_pkey", pk.Constraint)
		assert.Equal(t, []string{"id"}, pk.Columns)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`con.contype = 'p'`).
			WithArgs("heap").
			WillReturnRows(sqlmock.NewRows([]string{"name", "columns"}))

		_, err := db.PrimaryKey(context.Background(), "heap")
		assert.True(t, errors.Is(err, ErrNoPrimaryKey))
	})
}

func fkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"name", "table_name", "columns", "ref_table", "ref_columns", "on_update", "on_delete", "definition"}).
		AddRow("events_location_foreign", "events", "{location}", "locations", "{id}", "a", "n",
			"FOREIGN KEY (location) REFERENCES locations(id) ON DELETE SET NULL").
		AddRow("locations_translations_locations_id_foreign", "locations_translations", "{locations_id}", "locations", "{id}", "a", "c",
			"FOREIGN KEY (locations_id) REFERENCES locations(id) ON DELETE CASCADE").
		AddRow("locations_owner_code_foreign", "locations", "{owner_code}", "locations", "{code}", "a", "a",
			"FOREIGN KEY (owner_code) REFERENCES locations(code)")
}

func TestReferencingKeys(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`AND confrel.relname = \$1`).
		WithArgs("locations").
		WillReturnRows(fkRows())

	keys, err := db.ReferencingKeys(context.Background(), "locations", "id")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "events", keys[0].Table)
	assert.Equal(t, []string{"location"}, keys[0].Columns)
	assert.Equal(t, "SET NULL", keys[0].OnDelete)
	assert.Equal(t, "NO ACTION", keys[0].OnUpdate)
	assert.Equal(t, "CASCADE", keys[1].OnDelete)
	assert.Equal(t, "events_location_foreign: events(location) -> locations(id) on delete set null", keys[0].String())
}

func TestForeignKeys(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`con.contype = 'f'`).WillReturnRows(fkRows())

	keys, err := db.ForeignKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConstraintExists(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM pg_constraint con .*JOIN pg_namespace nsp .*WHERE nsp.nspname = current_schema\(\) AND rel.relname = \$1`).
		WithArgs("events", "events_location_foreign").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := db.ConstraintExists(context.Background(), "events", "events_location_foreign")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentifiers(t *testing.T) {
	assert.True(t, ValidIdent("locations_translations"))
	assert.True(t, ValidIdent("_tmp"))
	assert.False(t, ValidIdent("1table"))
	assert.False(t, ValidIdent("drop table; --"))
	assert.False(t, ValidIdent(""))
	assert.Equal(t, `"events"`, QuoteIdent("events"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
