package directus_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemCRUD(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("destinations", "id", "slug", "status")
	c := srv.Client()
	ctx := context.Background()

	created, err := c.CreateItem(ctx, "destinations", directus.Item{"slug": "danau-toba", "status": "draft"})
	require.NoError(t, err)
	id := created["id"]
	require.NotNil(t, id)

	got, err := c.GetItem(ctx, "destinations", id, "slug")
	require.NoError(t, err)
	assert.Equal(t, directus.Item{"slug": "danau-toba"}, got)

	_, err = c.UpdateItem(ctx, "destinations", id, directus.Item{"status": "published"})
	require.NoError(t, err)
	assert.Equal(t, "published", srv.Items("destinations")[0]["status"])

	ok, err := c.ItemExists(ctx, "destinations", "id", id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.DeleteItem(ctx, "destinations", id))
	ok, err = c.ItemExists(ctx, "destinations", "id", id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.GetItem(ctx, "destinations", id)
	assert.True(t, directus.IsMissing(err))
}

func TestListAllItemsPages(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("locations", "id", "name")
	for i := 1; i <= 450; i++ {
		srv.AddItems("locations", directus.Item{"id": i, "name": fmt.Sprintf("loc-%03d", i)})
	}
	c := srv.Client()

	all, err := c.ListAllItems(context.Background(), "locations", directus.Query{Sort: []string{"id"}})
	require.NoError(t, err)
	require.Len(t, all, 450)
	assert.Equal(t, "loc-001", all[0]["name"])
	assert.Equal(t, "loc-450", all[449]["name"])
}

func TestListItemsFilter(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("events", "id", "status")
	srv.AddItems("events",
		directus.Item{"id": 1, "status": "published"},
		directus.Item{"id": 2, "status": "draft"},
		directus.Item{"id": 3, "status": "published"},
	)
	c := srv.Client()

	items, err := c.ListItems(context.Background(), "events", directus.Query{
		Filter: directus.Eq("status", "published"),
		Sort:   []string{"-id"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0]["id"])

	n, err := c.CountItems(context.Background(), "events", directus.Eq("status", "draft"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCountItemsNumeric(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*", r.URL.Query().Get("aggregate[count]"))
		_, _ = w.Write([]byte(`{"data":[{"count":42}]}`))
	}))
	defer ts.Close()
	c := directus.New(ts.URL, directus.WithStaticToken("t"))

	n, err := c.CountItems(context.Background(), "events", nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestQueryEncoding(t *testing.T) {
	var raw string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()
	c := directus.New(ts.URL, directus.WithStaticToken("t"))

	_, err := c.ListItems(context.Background(), "articles", directus.Query{
		Fields: []string{"id", "translations.*"},
		Filter: directus.And(directus.Eq("status", "published"), directus.Eq("slug", "a b")),
		Limit:  -1,
		Meta:   "filter_count",
	})
	require.NoError(t, err)
	assert.Contains(t, raw, "fields=id%2Ctranslations.%2A")
	assert.Contains(t, raw, "limit=-1")
	assert.Contains(t, raw, "meta=filter_count")
	assert.True(t, strings.Contains(raw, "filter=%7B%22_and%22"))
}

func TestUnknownCollectionIsMissing(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	c := srv.Client()

	_, err := c.ListItems(context.Background(), "nope", directus.Query{})
	require.Error(t, err)
	assert.True(t, directus.IsForbidden(err))
	assert.True(t, directus.IsMissing(err))
}
