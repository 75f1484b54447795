package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"cmsops/pkg/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := database.Wrap(sqlDB, nil)
	require.NoError(t, err)
	return db, mock
}

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2024-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = MonthRange("12/2024")
	assert.ErrorContains(t, err, "YYYY-MM")
}

func TestRunReport(t *testing.T) {
	db, mock := mockDB(t)
	start := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	mock.ExpectQuery(`SELECT COALESCE\(status, '\(none\)'\) AS status, COUNT\(\*\) AS count\s+FROM "events"`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("draft", 2).AddRow("published", 5))
	created := time.Date(2024, 8, 17, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT "id"::text AS id, COALESCE\(status, ''\) AS status, COALESCE\("slug", ''\) AS slug`).
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "slug", "date_created"}).
			AddRow("12", "published", "pesta-danau-toba", created))

	var buf bytes.Buffer
	require.NoError(t, RunReport(context.Background(), db.Gorm, &buf, "events", "2024-08", true))
	assert.Equal(t, "Report for collection=events month=2024-08 (UTC):\n"+
		"  status=draft count=2\n"+
		"  status=published count=5\n"+
		"  total=7\n"+
		"12|published|pesta-danau-toba|2024-08-17T09:00:00Z\n", buf.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownCollection(t *testing.T) {
	db, _ := mockDB(t)
	err := RunReport(context.Background(), db.Gorm, &bytes.Buffer{}, "users; drop", "2024-08", false)
	assert.ErrorContains(t, err, "unknown content collection")
}
