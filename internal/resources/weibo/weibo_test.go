package weibo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

type captured struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newTestAPI(t *testing.T, respond string) (*API, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &got.body)
		}
		w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)

	c, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, HTTPClient: srv.Client(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	return New(c), got
}

func TestList(t *testing.T) {
	api, got := newTestAPI(t, `{"code":0,"data":{"page":2,"size":10,"total":11,"list":[{"id":1,"content":"hi","visibility":"public","assets":[{"fileId":4,"kind":"image"}]}]}}`)

	res, err := api.List(context.Background(), ListParams{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, "/weibo/posts", got.path)
	assert.Equal(t, "page=2", got.query)
	assert.Equal(t, 11, res.Total)
	assert.Equal(t, int64(4), res.List[0].Assets[0].FileID)
}

func TestCreate(t *testing.T) {
	api, got := newTestAPI(t, `{"code":0,"data":{"id":8,"createdAt":"now"}}`)

	lat := 31.2
	res, err := api.Create(context.Background(), PostInput{
		Content:    "hello",
		Visibility: VisibilityPrivate,
		Lat:        &lat,
		Assets:     []AssetInput{{FileID: 4, Kind: "image"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.ID)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "private", got.body["visibility"])
	assert.Equal(t, 31.2, got.body["lat"])
	assert.NotContains(t, got.body, "lng")
}

func TestUpdate(t *testing.T) {
	api, got := newTestAPI(t, `{"code":0,"data":{"updated":true,"snapshotVersion":3}}`)

	res, err := api.Update(context.Background(), UpdateInput{ID: 8, Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/weibo/posts/update", got.path)
	assert.Equal(t, float64(8), got.body["id"])
	assert.Equal(t, 3, res.SnapshotVersion)
}

func TestDetailAndSnapshots(t *testing.T) {
	api, got := newTestAPI(t, `{"code":0,"data":{"id":8,"content":"x","updatedAt":"later"}}`)
	post, err := api.Detail(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "/weibo/posts/detail", got.path)
	assert.Equal(t, "id=8", got.query)
	assert.Equal(t, "later", post.UpdatedAt)

	api, got = newTestAPI(t, `{"code":0,"data":{"page":1,"size":10,"total":1,"items":[{"id":5,"version":1}]}}`)
	snaps, err := api.Snapshots(context.Background(), 8, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "/weibo/posts/snapshots", got.path)
	assert.Equal(t, "page=1&postId=8&size=10", got.query)
	assert.Equal(t, 1, snaps.Items[0].Version)

	api, got = newTestAPI(t, `{"code":0,"data":{"id":5,"version":1,"content":"old"}}`)
	snap, err := api.Snapshot(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "/weibo/snapshot", got.path)
	assert.Equal(t, "old", snap.Content)
}

func TestDelete_SendsIDInBody(t *testing.T) {
	api, got := newTestAPI(t, `{"code":0,"data":{"ok":true}}`)

	ok, err := api.Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/weibo/posts/delete", got.path)
	assert.Equal(t, map[string]any{"id": float64(8)}, got.body)
}
