package migrate

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineFilesAreGooseAnnotated(t *testing.T) {
	files, err := BaselineFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "00001_cmsops_runs.sql", files[0])
	for _, f := range files {
		b, err := fs.ReadFile(embedMigrations, "migrations/"+f)
		require.NoError(t, err)
		s := string(b)
		assert.True(t, strings.Contains(s, "-- +goose Up"), f)
		assert.True(t, strings.Contains(s, "-- +goose Down"), f)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	r := New(nil, nil)
	err := r.Run(context.Background(), "fix", "migrations")
	assert.ErrorContains(t, err, "unknown migrate command")
}
