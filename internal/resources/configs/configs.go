// Package configs wraps the backend's dynamic configuration store.
package configs

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

// Value types accepted by the backend.
const (
	TypeString = "string"
	TypeJSON   = "json"
	TypeNumber = "number"
	TypeBool   = "bool"
)

// Item is one configuration entry.
type Item struct {
	Namespace   string `json:"namespace"`
	Env         string `json:"env"`
	Key         string `json:"key"`
	Type        string `json:"type"`
	Value       any    `json:"value"`
	Enabled     bool   `json:"enabled"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	UpdatedBy   string `json:"updated_by,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// ListParams filters List. Empty fields are not sent.
type ListParams struct {
	Namespace string `url:"namespace,omitempty"`
	Env       string `url:"env,omitempty"`
	KeyLike   string `url:"key_like,omitempty"`
	Enabled   *bool  `url:"enabled,omitempty"`
	Page      int    `url:"page,omitempty"`
	Size      int    `url:"size,omitempty"`
}

// ListResult is a page of items.
type ListResult struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Key identifies a single item.
type Key struct {
	Namespace string `url:"namespace" json:"namespace"`
	Env       string `url:"env" json:"env"`
	Key       string `url:"key" json:"key"`
}

// VersionsParams selects an item's history page.
type VersionsParams struct {
	Namespace string `url:"namespace"`
	Env       string `url:"env"`
	Key       string `url:"key"`
	Page      int    `url:"page,omitempty"`
	Size      int    `url:"size,omitempty"`
}

// Version is one historical value.
type Version struct {
	Version      int    `json:"version"`
	Value        any    `json:"value"`
	ChangedBy    string `json:"changed_by"`
	ChangeReason string `json:"change_reason"`
	CreatedAt    string `json:"created_at"`
}

// VersionsResult is a page of history.
type VersionsResult struct {
	Items []Version `json:"items"`
	Total int       `json:"total"`
}

// CreateRequest creates an item.
type CreateRequest struct {
	Namespace    string `json:"namespace"`
	Env          string `json:"env"`
	Key          string `json:"key"`
	Type         string `json:"type"`
	Value        any    `json:"value"`
	Enabled      bool   `json:"enabled"`
	Description  string `json:"description"`
	ChangeReason string `json:"change_reason"`
}

// UpdateRequest replaces an item at a known version.
type UpdateRequest struct {
	Namespace    string `json:"namespace"`
	Env          string `json:"env"`
	Key          string `json:"key"`
	Type         string `json:"type"`
	Value        any    `json:"value"`
	Enabled      bool   `json:"enabled"`
	Description  string `json:"description"`
	Version      int    `json:"version"`
	ChangeReason string `json:"change_reason"`
}

// DeleteParams removes an item at a known version. Sent as query parameters.
type DeleteParams struct {
	Namespace    string `url:"namespace"`
	Env          string `url:"env"`
	Key          string `url:"key"`
	Version      int    `url:"version"`
	ChangeReason string `url:"change_reason"`
}

// RollbackRequest restores an earlier version.
type RollbackRequest struct {
	Namespace    string `json:"namespace"`
	Env          string `json:"env"`
	Key          string `json:"key"`
	ToVersion    int    `json:"to_version"`
	ChangeReason string `json:"change_reason"`
}

// ImportRequest upserts items in bulk.
type ImportRequest struct {
	Items        []Item `json:"items"`
	ChangeReason string `json:"change_reason"`
}

// ImportResult counts what an import changed.
type ImportResult struct {
	OK      bool `json:"ok"`
	Added   int  `json:"added"`
	Updated int  `json:"updated"`
}

// ExportParams filters Export.
type ExportParams struct {
	Namespace string `url:"namespace,omitempty"`
	Env       string `url:"env,omitempty"`
	Enabled   *bool  `url:"enabled,omitempty"`
}

// ExportResult holds exported items.
type ExportResult struct {
	Items []Item `json:"items"`
}

// RefreshResult reports a cache rebuild.
type RefreshResult struct {
	Status    string `json:"status"`
	Entries   int    `json:"entries"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Stats reports the cache size.
type Stats struct {
	Entries int `json:"entries"`
}

// Result is the acknowledgement of a mutation.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// API exposes /config/* operations.
type API struct {
	c apiclient.Requester
}

// New creates an API on top of c.
func New(c apiclient.Requester) *API {
	return &API{c: c}
}

// List returns a filtered page of items.
func (a *API) List(ctx context.Context, p ListParams) (*ListResult, error) {
	var out ListResult
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/config/list", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return &out, nil
}

// Item fetches one item.
func (a *API) Item(ctx context.Context, k Key) (*Item, error) {
	var out struct {
		Item *Item `json:"item"`
	}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/config/item", Query: k}, &out); err != nil {
		return nil, fmt.Errorf("get config item: %w", err)
	}
	return out.Item, nil
}

// Versions lists an item's history.
func (a *API) Versions(ctx context.Context, p VersionsParams) (*VersionsResult, error) {
	var out VersionsResult
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/config/versions", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list config versions: %w", err)
	}
	return &out, nil
}

// Create adds an item.
func (a *API) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	var out Result
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/config/create", Body: req}, &out); err != nil {
		return nil, fmt.Errorf("create config: %w", err)
	}
	return &out, nil
}

// Update replaces an item.
func (a *API) Update(ctx context.Context, req UpdateRequest) (*Result, error) {
	var out Result
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPut, Path: "/config/update", Body: req}, &out); err != nil {
		return nil, fmt.Errorf("update config: %w", err)
	}
	return &out, nil
}

// Delete removes an item.
func (a *API) Delete(ctx context.Context, p DeleteParams) (*Result, error) {
	var out Result
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: "/config/delete", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("delete config: %w", err)
	}
	return &out, nil
}

// Rollback restores an earlier version.
func (a *API) Rollback(ctx context.Context, req RollbackRequest) (*Result, error) {
	var out Result
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/config/rollback", Body: req}, &out); err != nil {
		return nil, fmt.Errorf("rollback config: %w", err)
	}
	return &out, nil
}

// Stats returns cache statistics.
func (a *API) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/config/stats"}, &out); err != nil {
		return nil, fmt.Errorf("config stats: %w", err)
	}
	return &out, nil
}

// Refresh rebuilds the backend cache.
func (a *API) Refresh(ctx context.Context, reason string) (*RefreshResult, error) {
	var out RefreshResult
	body := map[string]string{"reason": reason}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/config/refresh", Body: body}, &out); err != nil {
		return nil, fmt.Errorf("refresh config cache: %w", err)
	}
	return &out, nil
}

// Import upserts items in bulk.
func (a *API) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	var out ImportResult
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: "/config/import", Body: req}, &out); err != nil {
		return nil, fmt.Errorf("import configs: %w", err)
	}
	return &out, nil
}

// Export returns all matching items.
func (a *API) Export(ctx context.Context, p ExportParams) (*ExportResult, error) {
	var out ExportResult
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/config/export", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("export configs: %w", err)
	}
	return &out, nil
}
