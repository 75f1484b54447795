package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *directustest.Server {
	t.Helper()
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("events", "id", "slug", "status")
	srv.AddItems("events",
		directus.Item{"id": 1, "slug": "festival-danau-toba", "status": "published", "tags": []string{"budaya", "musik"}},
		directus.Item{"id": 2, "slug": "pasar-malam", "status": "draft", "venue": nil},
	)
	return srv
}

func TestParseFormats(t *testing.T) {
	f, err := ParseFormats("")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatJSON}, f)

	f, err = ParseFormats("csv, JSON,csv")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatCSV, FormatJSON}, f)

	_, err = ParseFormats("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExport(t *testing.T) {
	srv := seeded(t)
	dir := t.TempDir()
	exp := NewExporter(srv.Client(), dir, nil)
	exp.Schema = true
	exp.SourceName = srv.URL
	exp.now = func() time.Time { return time.Date(2024, 3, 9, 7, 30, 0, 0, time.UTC) }

	out, m, err := exp.Export(context.Background(), []string{"events", "nope"}, []Format{FormatJSON, FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240309-073000"), out)
	assert.Equal(t, []string{"nope"}, m.Skipped)
	require.Len(t, m.Collections, 1)
	assert.Equal(t, ManifestEntry{Collection: "events", Count: 2, Files: []string{"events.json", "events.csv"}}, m.Collections[0])

	raw, err := os.ReadFile(filepath.Join(out, "events.json"))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "events", doc.Collection)
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, "festival-danau-toba", doc.Items[0]["slug"])

	csvRaw, err := os.ReadFile(filepath.Join(out, "events.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvRaw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,slug,status,tags,venue", lines[0])
	assert.Equal(t, `1,festival-danau-toba,published,"[""budaya"",""musik""]",`, lines[1])
	assert.Equal(t, "2,pasar-malam,draft,,", lines[2])

	assert.FileExists(t, filepath.Join(out, "manifest.json"))
	assert.FileExists(t, filepath.Join(out, "schema.json"))
	assert.Equal(t, "schema.json", m.Schema)
}

func TestExportRejectsFormat(t *testing.T) {
	exp := NewExporter(seeded(t).Client(), t.TempDir(), nil)
	_, _, err := exp.Export(context.Background(), []string{"events"}, []Format{"xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestCSVRoundTrip(t *testing.T) {
	items := []directus.Item{
		{"id": float64(7), "name": "Bukit Lawang", "meta": map[string]any{"rating": 4.5}, "open": true},
		{"id": float64(8), "name": "Tangkahan, Langkat"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "7", got[0]["id"])
	assert.Equal(t, map[string]any{"rating": 4.5}, got[0]["meta"])
	assert.Equal(t, "true", got[0]["open"])
	assert.Equal(t, "Tangkahan, Langkat", got[1]["name"])
	assert.NotContains(t, got[1], "meta")

	empty, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCSVKeepsJSONLookingText(t *testing.T) {
	items := []directus.Item{
		{"id": float64(1), "title": "[1]", "note": `{"a":1}`, "quote": `"Horas!"`, "tags": []any{"budaya"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))
	assert.Contains(t, buf.String(), `"""[1]"""`)

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "[1]", got[0]["title"])
	assert.Equal(t, `{"a":1}`, got[0]["note"])
	assert.Equal(t, `"Horas!"`, got[0]["quote"])
	assert.Equal(t, []any{"budaya"}, got[0]["tags"])
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestImportSkipAndUpsert(t *testing.T) {
	srv := seeded(t)
	im := NewImporter(srv.Client(), nil)
	ctx := context.Background()
	path := writeFile(t, "events.json", `{
		"collection": "events",
		"items": [
			{"id": 1, "slug": "festival-danau-toba", "status": "archived", "date_created": "2024-01-01T00:00:00Z"},
			{"id": 3, "slug": "lomba-perahu", "status": "draft"}
		]}`)

	res, err := im.Import(ctx, path, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Collection: "events", Created: 1, Skipped: 1}, res)
	assert.Empty(t, srv.Writes())

	res, err = im.Import(ctx, path, ImportOptions{Mode: ModeUpsert, StripSystem: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)

	rows := srv.Items("events")
	require.Len(t, rows, 3)
	assert.Equal(t, "archived", rows[0]["status"])
	assert.NotContains(t, rows[2], "date_created")

	res, err = im.Import(ctx, path, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "events: 0 created, 0 updated, 2 skipped", res.String())
}

func TestImportCSVIntoOtherCollection(t *testing.T) {
	srv := seeded(t)
	srv.AddCollection("events_copy", "id", "slug")
	path := writeFile(t, "events.csv", "id,slug\n10,pasar-seni\n11,\n")

	res, err := NewImporter(srv.Client(), nil).Import(context.Background(), path, ImportOptions{Collection: "events_copy"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	rows := srv.Items("events_copy")
	require.Len(t, rows, 2)
	assert.Equal(t, "pasar-seni", rows[0]["slug"])
	assert.NotContains(t, rows[1], "slug")
}

func TestReadFile(t *testing.T) {
	c, items, err := ReadFile(writeFile(t, "articles.json", `[{"id": 1}]`))
	require.NoError(t, err)
	assert.Equal(t, "articles", c)
	assert.Len(t, items, 1)

	_, _, err = ReadFile(writeFile(t, "articles.xml", `<x/>`))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = ReadFile(writeFile(t, "broken.json", `{`))
	assert.Error(t, err)
}

func TestImportRejectsMode(t *testing.T) {
	path := writeFile(t, "events.json", `[]`)
	_, err := NewImporter(seeded(t).Client(), nil).Import(context.Background(), path, ImportOptions{Mode: "merge"})
	assert.ErrorContains(t, err, "unknown import mode")
}

type fakePutter struct {
	keys   []string
	bodies map[string]string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.keys = append(f.keys, *in.Key)
	f.bodies[*in.Key] = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestUploadDir(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "20240309-073000")
	require.NoError(t, os.MkdirAll(filepath.Join(run, "files"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(run, "events.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(run, "files", "a.csv"), []byte("id\n"), 0o644))

	put := &fakePutter{}
	up := newS3Uploader(put, "backups", "/cmsops/", nil)
	keys, err := up.UploadDir(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, []string{"cmsops/20240309-073000/events.json", "cmsops/20240309-073000/files/a.csv"}, keys)
	assert.Equal(t, "id\n", put.bodies["cmsops/20240309-073000/files/a.csv"])
}
