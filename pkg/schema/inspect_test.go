package schema

import (
	"bytes"
	"context"
	"testing"

	"cmsops/pkg/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := database.Wrap(sqlDB, nil)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM "directus_collections"`).
		WillReturnRows(sqlmock.NewRows([]string{"collection", "icon", "note", "hidden", "singleton", "group"}).
			AddRow("destinations", "place", nil, false, false, nil))
	mock.ExpectQuery(`FROM "directus_fields"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection", "field", "special", "interface", "readonly", "hidden", "sort", "note"}).
			AddRow(1, "destinations", "id", nil, "input", true, true, 1, nil).
			AddRow(2, "destinations", "location_id", "m2o", "select-dropdown-m2o", false, false, 2, nil).
			AddRow(3, "destinations", "translations", "translations", "translations", false, false, 3, nil).
			AddRow(4, "destinations", "hero_image", "file", "file-image", false, false, 4, nil))
	mock.ExpectQuery(`FROM "directus_relations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "many_collection", "many_field", "one_collection", "one_field", "junction_field", "one_deselect_action"}).
			AddRow(7, "destinations", "location_id", "locations", nil, nil, "nullify"))

	d, err := Inspect(context.Background(), db.Gorm, newCatalog(), "destinations")
	require.NoError(t, err)
	assert.True(t, d.Registered)
	assert.False(t, d.Clean())
	assert.Equal(t, []string{"hero_image"}, d.FieldsWithoutColumn)
	assert.Equal(t, []string{"slug"}, d.ColumnsWithoutField)
	require.Len(t, d.Relations, 1)

	var out bytes.Buffer
	d.Print(&out)
	assert.Equal(t, "destinations:\n"+
		" - field hero_image has no column\n"+
		" - column slug is not registered as a field\n"+
		" - relation destinations.location_id -> locations\n", out.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInspectFolder(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := database.Wrap(sqlDB, nil)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM "directus_collections"`).
		WillReturnRows(sqlmock.NewRows([]string{"collection", "icon", "note", "hidden", "singleton", "group"}).
			AddRow("content", "folder", nil, false, false, nil))

	d, err := Inspect(context.Background(), db.Gorm, newCatalog(), "content")
	require.NoError(t, err)
	assert.True(t, d.Folder)

	var out bytes.Buffer
	d.Print(&out)
	assert.Equal(t, "content: folder (no table)\n", out.String())

	_, err = Inspect(context.Background(), db.Gorm, newCatalog(), "bad-name")
	assert.ErrorIs(t, err, ErrInvalidName)
	require.NoError(t, mock.ExpectationsWereMet())
}
