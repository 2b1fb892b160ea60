// Package weibo wraps the backend's microblog posts and their snapshots.
package weibo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

// Post visibilities.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// AssetInput attaches an uploaded file to a post.
type AssetInput struct {
	FileID    int64  `json:"fileId"`
	Kind      string `json:"kind"`
	SortOrder int    `json:"sortOrder,omitempty"`
}

// Asset is an attached file reference.
type Asset struct {
	FileID int64  `json:"fileId"`
	Kind   string `json:"kind"`
}

// PostInput is the body of Create.
type PostInput struct {
	Content    string       `json:"content"`
	Visibility string       `json:"visibility,omitempty"`
	Assets     []AssetInput `json:"assets,omitempty"`
	Lat        *float64     `json:"lat,omitempty"`
	Lng        *float64     `json:"lng,omitempty"`
	City       string       `json:"city,omitempty"`
	Device     string       `json:"device,omitempty"`
}

// UpdateInput is the body of Update. Empty fields are left unchanged.
type UpdateInput struct {
	ID         int64        `json:"id"`
	Content    string       `json:"content,omitempty"`
	Visibility string       `json:"visibility,omitempty"`
	Assets     []AssetInput `json:"assets,omitempty"`
	Lat        *float64     `json:"lat,omitempty"`
	Lng        *float64     `json:"lng,omitempty"`
	City       string       `json:"city,omitempty"`
	Device     string       `json:"device,omitempty"`
}

// Post is a list entry or post detail. UpdatedAt is only set by Detail.
type Post struct {
	ID         int64    `json:"id"`
	Content    string   `json:"content"`
	Visibility string   `json:"visibility"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt,omitempty"`
	City       string   `json:"city"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Device     string   `json:"device"`
	Assets     []Asset  `json:"assets"`
}

// ListParams pages List.
type ListParams struct {
	Page       int    `url:"page,omitempty"`
	Size       int    `url:"size,omitempty"`
	Visibility string `url:"visibility,omitempty"`
}

// PostList is a page of posts.
type PostList struct {
	Page  int    `json:"page"`
	Size  int    `json:"size"`
	Total int    `json:"total"`
	List  []Post `json:"list"`
}

// Created acknowledges Create.
type Created struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Updated acknowledges Update with the snapshot it produced.
type Updated struct {
	Updated         bool `json:"updated"`
	SnapshotVersion int  `json:"snapshotVersion"`
}

// SnapshotSummary is a history entry.
type SnapshotSummary struct {
	ID         int64  `json:"id"`
	Version    int    `json:"version"`
	CreatedAt  string `json:"createdAt"`
	Visibility string `json:"visibility"`
}

// SnapshotList is a page of history.
type SnapshotList struct {
	Page  int               `json:"page"`
	Size  int               `json:"size"`
	Total int               `json:"total"`
	Items []SnapshotSummary `json:"items"`
}

// Snapshot is a historical version of a post.
type Snapshot struct {
	ID         int64   `json:"id"`
	Version    int     `json:"version"`
	CreatedAt  string  `json:"createdAt"`
	Visibility string  `json:"visibility"`
	Content    string  `json:"content"`
	Assets     []Asset `json:"assets"`
}

// API exposes /weibo/* operations.
type API struct {
	c apiclient.Requester
}

// New creates an API on top of c.
func New(c apiclient.Requester) *API {
	return &API{c: c}
}

// List returns a page of posts.
func (a *API) List(ctx context.Context, p ListParams) (*PostList, error) {
	var out PostList
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/weibo/posts", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &out, nil
}

// Create publishes a post.
func (a *API) Create(ctx context.Context, in PostInput) (*Created, error) {
	var out Created
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/weibo/posts", Body: in}, &out); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &out, nil
}

// Update edits a post. The backend keeps the previous version as a snapshot.
func (a *API) Update(ctx context.Context, in UpdateInput) (*Updated, error) {
	var out Updated
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPut, Path: "/weibo/posts/update", Body: in}, &out); err != nil {
		return nil, fmt.Errorf("update post %d: %w", in.ID, err)
	}
	return &out, nil
}

// Detail fetches post id.
func (a *API) Detail(ctx context.Context, id int64) (*Post, error) {
	var out Post
	q := map[string]any{"id": id}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/weibo/posts/detail", Query: q}, &out); err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &out, nil
}

// Snapshots lists the history of postID.
func (a *API) Snapshots(ctx context.Context, postID int64, page, size int) (*SnapshotList, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	var out SnapshotList
	q := map[string]any{"postId": postID, "page": page, "size": size}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/weibo/posts/snapshots", Query: q}, &out); err != nil {
		return nil, fmt.Errorf("list snapshots of post %d: %w", postID, err)
	}
	return &out, nil
}

// Snapshot fetches snapshot id.
func (a *API) Snapshot(ctx context.Context, id int64) (*Snapshot, error) {
	var out Snapshot
	q := map[string]any{"id": id}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/weibo/snapshot", Query: q}, &out); err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return &out, nil
}

// Delete soft-deletes post id.
func (a *API) Delete(ctx context.Context, id int64) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	body := map[string]int64{"id": id}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: "/weibo/posts/delete", Body: body}, &out); err != nil {
		return false, fmt.Errorf("delete post %d: %w", id, err)
	}
	return out.OK, nil
}
