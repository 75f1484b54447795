package directus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginOnFirstCall(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("events", "id", "title")
	c := srv.Client()

	_, err := c.ListItems(context.Background(), "events", directus.Query{})
	require.NoError(t, err)
	_, err = c.ListItems(context.Background(), "events", directus.Query{})
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Logins())
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), c.ExpiresAt(), time.Minute)
}

func TestBadCredentials(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	c := directus.New(srv.URL, directus.WithCredentials(directustest.AdminEmail, "wrong"))

	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, directus.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "INVALID_CREDENTIALS")
}

func TestRefreshNearExpiry(t *testing.T) {
	// tokens that live less than the refresh window are refreshed before use
	srv := directustest.New(t, directustest.Options{TTL: 20 * time.Second})
	srv.AddCollection("events", "id")
	c := srv.Client()
	ctx := context.Background()

	_, err := c.ListItems(ctx, "events", directus.Query{})
	require.NoError(t, err)
	_, err = c.ListItems(ctx, "events", directus.Query{})
	require.NoError(t, err)

	assert.Equal(t, 1, srv.Logins())
	assert.Equal(t, 1, srv.Refreshes())
}

func TestReloginOnUnauthorized(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("events", "id")
	c := srv.Client()
	ctx := context.Background()

	_, err := c.ListItems(ctx, "events", directus.Query{})
	require.NoError(t, err)
	srv.InvalidateTokens()
	_, err = c.ListItems(ctx, "events", directus.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Logins())
}

func TestStaticToken(t *testing.T) {
	srv := directustest.New(t, directustest.Options{StaticToken: "static-abc"})
	srv.AddCollection("events", "id")
	c := directus.New(srv.URL, directus.WithStaticToken("static-abc"))

	_, err := c.ListItems(context.Background(), "events", directus.Query{})
	require.NoError(t, err)
	assert.Zero(t, srv.Logins())
	assert.True(t, c.ExpiresAt().IsZero())
}

func TestNoCredentials(t *testing.T) {
	c := directus.New("http://127.0.0.1:1")
	_, err := c.ListItems(context.Background(), "events", directus.Query{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, err := directus.TokenExpiry(tok)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = directus.TokenExpiry(noExp)
	assert.Error(t, err)

	_, err = directus.TokenExpiry("not-a-token")
	assert.Error(t, err)
}

func TestAPIErrorDecoding(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Invalid query","extensions":{"code":"INVALID_QUERY"}},{"message":"second"}]}`))
	}))
	defer ts.Close()
	c := directus.New(ts.URL, directus.WithStaticToken("t"))

	_, err := c.ListItems(context.Background(), "x", directus.Query{})
	var apiErr *directus.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_QUERY", apiErr.Code)
	assert.Equal(t, "Invalid query; second", apiErr.Message)
	assert.Equal(t, "/items/x", apiErr.Path)
	assert.False(t, directus.IsMissing(err))
}

func TestPlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer ts.Close()
	c := directus.New(ts.URL, directus.WithStaticToken("t"))

	err := c.DeleteItem(context.Background(), "x", 1)
	var apiErr *directus.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.True(t, strings.Contains(apiErr.Message, "bad gateway"))
}

func TestHealthAndPing(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	c := srv.Client()
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.OK())
	require.NoError(t, c.Ping(ctx))
	assert.Zero(t, srv.Logins())
}

func TestUnhealthyServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","checks":{"database:responseTime":[{"status":"error"}]}}`))
	}))
	defer ts.Close()
	h, err := directus.New(ts.URL).Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.OK())
	assert.Contains(t, h.Checks, "database:responseTime")
}
