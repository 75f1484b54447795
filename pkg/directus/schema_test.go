package directus_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsLifecycle(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("events", "id", "title")
	c := srv.Client()
	ctx := context.Background()

	_, err := c.CreateField(ctx, "events", directus.Field{
		Field: "starts_at", Type: "timestamp",
		Meta: map[string]any{"interface": "datetime"},
	})
	require.NoError(t, err)

	f, err := c.GetField(ctx, "events", "starts_at")
	require.NoError(t, err)
	assert.Equal(t, "datetime", f.Meta["interface"])

	_, err = c.UpdateField(ctx, "events", "starts_at", map[string]any{"note": "local time", "width": "half"})
	require.NoError(t, err)
	f, err = c.GetField(ctx, "events", "starts_at")
	require.NoError(t, err)
	assert.Equal(t, "local time", f.Meta["note"])
	assert.Equal(t, "datetime", f.Meta["interface"])

	all, err := c.ListFields(ctx, "events")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, c.DeleteField(ctx, "events", "starts_at"))
	_, err = c.GetField(ctx, "events", "starts_at")
	assert.True(t, directus.IsMissing(err))
}

func TestCollectionsAndRelations(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	c := srv.Client()
	ctx := context.Background()

	ok, err := c.CollectionExists(ctx, "languages")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.CreateCollection(ctx, directus.Collection{
		Collection: "languages",
		Schema:     map[string]any{},
		Fields: []directus.Field{{
			Field: "code", Type: "string",
			Schema: &directus.FieldSchema{IsPrimaryKey: true},
		}},
	})
	require.NoError(t, err)
	ok, err = c.CollectionExists(ctx, "languages")
	require.NoError(t, err)
	assert.True(t, ok)

	cols, err := c.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.False(t, cols[0].IsFolder())

	related := "languages"
	_, err = c.CreateRelation(ctx, directus.Relation{Collection: "events_translations", Field: "languages_code", RelatedCollection: &related})
	require.NoError(t, err)
	_, err = c.CreateRelation(ctx, directus.Relation{Collection: "events_translations", Field: "languages_code", RelatedCollection: &related})
	assert.Error(t, err)

	rels, err := c.ListRelations(ctx)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.NoError(t, c.DeleteRelation(ctx, "events_translations", "languages_code"))
	assert.Empty(t, srv.Relations())

	snap, err := c.SchemaSnapshot(ctx)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(snap, &parsed))
	assert.Contains(t, parsed, "collections")

	require.NoError(t, c.DeleteCollection(ctx, "languages"))
	assert.False(t, srv.HasCollection("languages"))
}

func TestPermissions(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	policy := "pol-1"
	srv.AddPermission(directus.Permission{Collection: "events", Action: "read", Fields: []string{"*"}})
	srv.AddPermission(directus.Permission{Collection: "events", Action: "read", Policy: &policy, Fields: []string{"id"}})
	c := srv.Client()
	ctx := context.Background()

	public, err := c.ListPermissions(ctx, directus.PermissionFilter{Collection: "events", PublicRole: true})
	require.NoError(t, err)
	require.Len(t, public, 2) // policy rows also have role = null

	byPolicy, err := c.ListPermissions(ctx, directus.PermissionFilter{Policy: policy})
	require.NoError(t, err)
	require.Len(t, byPolicy, 1)
	assert.Equal(t, []string{"id"}, byPolicy[0].Fields)

	created, err := c.CreatePermission(ctx, directus.Permission{Collection: "articles", Action: "read", Policy: &policy, Fields: []string{"*"}})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	_, err = c.UpdatePermission(ctx, created.ID, map[string]any{"fields": []string{"id", "title"}})
	require.NoError(t, err)
	perms := srv.Permissions()
	require.Len(t, perms, 3)
	assert.Equal(t, []string{"id", "title"}, perms[2].Fields)
	assert.Equal(t, "articles", perms[2].Collection)

	require.NoError(t, c.DeletePermission(ctx, created.ID))
	assert.Len(t, srv.Permissions(), 2)
}

func TestFlows(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddFlow(directus.Flow{ID: "f2", Name: "Translate", Status: directus.FlowActive, Trigger: "event"})
	srv.AddFlow(directus.Flow{ID: "f1", Name: "Notify", Status: directus.FlowActive, Trigger: "event"})
	c := srv.Client()
	ctx := context.Background()

	flows, err := c.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "Notify", flows[0].Name)

	f, err := c.UpdateFlowStatus(ctx, "f2", directus.FlowInactive)
	require.NoError(t, err)
	assert.Equal(t, directus.FlowInactive, f.Status)

	_, err = c.UpdateFlowStatus(ctx, "f2", "paused")
	assert.Error(t, err)
}

func TestUploadFile(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	c := srv.Client()

	f, err := c.UploadFile(context.Background(), "danau-toba.jpg", strings.NewReader("jpegbytes"), directus.FileOptions{Folder: "fold-1", Title: "Danau Toba"})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	files := srv.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "fold-1", files[0].Folder)
	assert.Equal(t, "Danau Toba", files[0].Title)
	assert.Equal(t, "danau-toba.jpg", files[0].FilenameDownload)
}

func TestUsersAndRoles(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddRole(directus.Role{ID: "r-editor", Name: "Editor"})
	c := srv.Client()
	ctx := context.Background()

	role, err := c.FindRole(ctx, "editor")
	require.NoError(t, err)
	assert.Equal(t, "r-editor", role.ID)
	_, err = c.FindRole(ctx, "ghost")
	assert.Error(t, err)

	u, err := c.CreateUser(ctx, directus.User{Email: "ed@example.com", Password: "pw", Role: role.ID})
	require.NoError(t, err)
	assert.Empty(t, u.Password)

	found, err := c.FindUser(ctx, "ed@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	missing, err := c.FindUser(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = c.CreateUser(ctx, directus.User{Email: "ed@example.com", Password: "pw"})
	assert.Error(t, err)
}
