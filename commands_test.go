package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"cmsops/pkg/config"
	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"
	"cmsops/pkg/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv points the CLI at a fake CMS and keeps the run journal off.
func fakeEnv(t *testing.T) *directustest.Server {
	t.Helper()
	srv := directustest.New(t, directustest.Options{})
	t.Setenv("DIRECTUS_URL", srv.URL)
	t.Setenv("DIRECTUS_TOKEN", "")
	t.Setenv("ADMIN_EMAIL", directustest.AdminEmail)
	t.Setenv("ADMIN_PASSWORD", directustest.AdminPassword)
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("PUBLIC_POLICY", "")
	t.Setenv("LOG_LEVEL", "error")
	return srv
}

// resetFlags puts every flag of the command tree back to its default;
// pflag keeps the last parsed value in the bound variables.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue), f.Name)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(t, c)
	}
}

// execute runs the root command from default flags.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, RootCmd)
	var out bytes.Buffer
	base := []string{"--env-file=" + filepath.Join(t.TempDir(), "missing.env")}
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(append(base, args...))
	err := RootCmd.Execute()
	closeDB()
	return out.String(), err
}

func TestLanguagesEnsure(t *testing.T) {
	srv := fakeEnv(t)

	out, err := execute(t, "languages", "ensure")
	require.NoError(t, err)
	assert.Contains(t, out, "Planned actions:")
	assert.Contains(t, out, "dry-run: no changes made")
	assert.False(t, srv.HasCollection("languages"))

	_, err = execute(t, "languages", "ensure", "--dry-run=false")
	require.NoError(t, err)
	assert.True(t, srv.HasCollection("languages"))
	assert.Len(t, srv.Items("languages"), 2)

	out, err = execute(t, "languages", "ensure", "--dry-run=false")
	require.NoError(t, err)
	assert.Contains(t, out, "skip:")
}

func TestPermissionsRepairDryRun(t *testing.T) {
	srv := fakeEnv(t)

	out, err := execute(t, "permissions", "repair", "--collections", "articles")
	require.NoError(t, err)
	assert.Contains(t, out, "Planned actions for public:")
	assert.Contains(t, out, " - create read on articles")
	assert.Contains(t, out, " - create read on articles_translations")
	assert.Empty(t, srv.Permissions())

	_, err = execute(t, "permissions", "repair", "--collections", "articles", "--dry-run=false")
	require.NoError(t, err)
	assert.Len(t, srv.Permissions(), 2)
}

func TestFlowsSetStatus(t *testing.T) {
	srv := fakeEnv(t)
	srv.AddFlow(directus.Flow{ID: "f1", Name: "notify-editors", Status: directus.FlowActive, Trigger: "event"})

	out, err := execute(t, "flows", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notify-editors")

	out, err = execute(t, "flows", "set-status", "notify-editors", "inactive")
	require.NoError(t, err)
	assert.Contains(t, out, "set flow notify-editors (f1) active -> inactive")
	assert.Equal(t, directus.FlowActive, srv.Flows()[0].Status)

	_, err = execute(t, "flows", "set-status", "f1", "inactive", "--dry-run=false")
	require.NoError(t, err)
	assert.Equal(t, directus.FlowInactive, srv.Flows()[0].Status)

	_, err = execute(t, "flows", "set-status", "nope", "active")
	assert.ErrorContains(t, err, `flow "nope" not found`)
}

func TestBackupExportImport(t *testing.T) {
	srv := fakeEnv(t)
	srv.AddCollection("articles", "id", "slug", "status")
	srv.AddItems("articles",
		directus.Item{"id": 1, "slug": "pantai-kuta", "status": "published"},
		directus.Item{"id": 2, "slug": "danau-toba", "status": "draft"},
	)
	dir := t.TempDir()

	out, err := execute(t, "backup", "export", "--collections", "articles", "--dir", dir, "--format", "json,csv", "--schema=false", "--upload=false")
	require.NoError(t, err)
	assert.Contains(t, out, " - articles: 2 items (articles.json, articles.csv)")
	assert.Contains(t, out, "skip: articles_translations (not in CMS)")

	stamps, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, stamps, 1)
	exported := filepath.Join(dir, stamps[0].Name())
	assert.FileExists(t, filepath.Join(exported, "manifest.json"))

	srv.AddCollection("articles_archive", "id", "slug", "status")
	out, err = execute(t, "backup", "import", filepath.Join(exported, "articles.json"),
		"--collection", "articles_archive", "--mode", "skip", "--dry-run=false")
	require.NoError(t, err)
	assert.Contains(t, out, "articles_archive: 2 created, 0 updated, 0 skipped")
	assert.Len(t, srv.Items("articles_archive"), 2)

	_, err = execute(t, "backup", "upload", exported)
	assert.ErrorIs(t, err, errS3Disabled)
}

func TestDiagnoseFailsOnMissingCollection(t *testing.T) {
	fakeEnv(t)

	out, err := execute(t, "diagnose", "--collections", "events", "--db=false")
	assert.ErrorIs(t, err, errChecksFailed)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "FAIL")
}

func TestMissingCredentials(t *testing.T) {
	fakeEnv(t)
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := execute(t, "login")
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestLogin(t *testing.T) {
	srv := fakeEnv(t)

	out, err := execute(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in to "+srv.URL+" as "+directustest.AdminEmail)
}

func TestCollectionsArg(t *testing.T) {
	cols, err := collectionsArg(" events, articles ")
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "articles"}, collectionNames(cols))

	all, err := collectionsArg("")
	require.NoError(t, err)
	assert.Len(t, all, 6)

	_, err = collectionsArg("hotels")
	assert.ErrorContains(t, err, `unknown collection "hotels"`)
}

func TestSchemaNeedsDatabase(t *testing.T) {
	fakeEnv(t)

	_, err := execute(t, "schema", "add-column", "events", "ticket_url")
	assert.ErrorIs(t, err, config.ErrMissingDatabase)
}

func TestMigrateDestructiveNeedsYes(t *testing.T) {
	fakeEnv(t)

	for _, command := range []string{"down", "reset", "redo"} {
		out, err := execute(t, "migrate", "run", command, "--dry-run=false")
		assert.ErrorIs(t, err, schema.ErrNotConfirmed, command)
		assert.Contains(t, out, "Destructive! Pass --yes to proceed.")
	}
	// confirmed runs get as far as the database
	_, err := execute(t, "migrate", "run", "reset", "--dry-run=false", "--yes")
	assert.ErrorIs(t, err, config.ErrMissingDatabase)
	_, err = execute(t, "migrate", "run", "up", "--dry-run=false")
	assert.ErrorIs(t, err, config.ErrMissingDatabase)
}

func TestImportUpsertNeedsYes(t *testing.T) {
	srv := fakeEnv(t)
	srv.AddCollection("events", "id", "slug")
	srv.AddItems("events", directus.Item{"id": 1, "slug": "lama"})
	file := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"id": 1, "slug": "baru"}]`), 0o644))

	out, err := execute(t, "backup", "import", file, "--mode", "upsert", "--dry-run=false")
	assert.ErrorIs(t, err, schema.ErrNotConfirmed)
	assert.Contains(t, out, "Destructive! Pass --yes to proceed.")
	assert.Equal(t, "lama", srv.Items("events")[0]["slug"])

	_, err = execute(t, "backup", "import", file, "--mode", "upsert", "--dry-run=false", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "baru", srv.Items("events")[0]["slug"])
}

func TestFlagsResetBetweenRuns(t *testing.T) {
	fakeEnv(t)

	_, err := execute(t, "backup", "import", "missing.json", "--mode", "upsert", "--collection", "events")
	require.Error(t, err)
	assert.Equal(t, "upsert", importMode)

	_, err = execute(t, "flows", "list")
	require.NoError(t, err)
	assert.Equal(t, "skip", importMode)
	assert.Empty(t, importOpts.Collection)
	assert.True(t, dryRun)
}
