// Package files wraps the backend's file store: upload, listing, soft delete
// and verified downloads.
package files

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

// Uncategorized labels list entries that carry no category.
const Uncategorized = "uncategorized"

// Uploaded describes a stored upload.
type Uploaded struct {
	UUID         string `json:"file_uuid"`
	Name         string `json:"file_name"`
	Size         int64  `json:"file_size"`
	Extension    string `json:"file_extension"`
	MimeType     string `json:"mime_type"`
	MD5          string `json:"file_md5"`
	HasThumbnail bool   `json:"has_thumbnail"`
	DownloadURL  string `json:"download_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Info is the full record of one file.
type Info struct {
	ID              int64  `json:"id"`
	UUID            string `json:"file_uuid"`
	Name            string `json:"file_name"`
	Extension       string `json:"file_extension"`
	Size            int64  `json:"file_size"`
	MimeType        string `json:"mime_type"`
	Category        string `json:"file_category"`
	Hash            string `json:"file_hash"`
	MD5             string `json:"file_md5"`
	HasThumbnail    bool   `json:"has_thumbnail"`
	ThumbnailWidth  int    `json:"thumbnail_width,omitempty"`
	ThumbnailHeight int    `json:"thumbnail_height,omitempty"`
	DownloadCount   int64  `json:"download_count"`
	LastDownloadAt  string `json:"last_download_at,omitempty"`
	Metadata        any    `json:"metadata,omitempty"`
	Status          string `json:"file_status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	DownloadURL     string `json:"download_url"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// ListParams filters List.
type ListParams struct {
	Page         int    `url:"page,omitempty"`
	PageSize     int    `url:"page_size,omitempty"`
	Category     string `url:"category,omitempty"`
	Extension    string `url:"extension,omitempty"`
	Keyword      string `url:"keyword,omitempty"`
	SortBy       string `url:"sort_by,omitempty"`
	SortOrder    string `url:"sort_order,omitempty"`
	DateFrom     string `url:"date_from,omitempty"`
	DateTo       string `url:"date_to,omitempty"`
	MinSize      int64  `url:"min_size,omitempty"`
	MaxSize      int64  `url:"max_size,omitempty"`
	HasThumbnail *bool  `url:"has_thumbnail,omitempty"`
}

// Entry is one row of a listing. Category is always set after List.
type Entry struct {
	ID             int64  `json:"id"`
	UUID           string `json:"file_uuid"`
	Name           string `json:"file_name"`
	Extension      string `json:"file_extension"`
	Size           int64  `json:"file_size"`
	MimeType       string `json:"mime_type"`
	MD5            string `json:"file_md5"`
	FileCategory   string `json:"file_category,omitempty"`
	Category       string `json:"category"`
	HasThumbnail   bool   `json:"has_thumbnail"`
	DownloadCount  int64  `json:"download_count"`
	LastDownloadAt string `json:"last_download_at,omitempty"`
	CreatedAt      string `json:"created_at"`
	DownloadURL    string `json:"download_url"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
}

// List is a page of entries.
type List struct {
	List       []Entry `json:"list"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
}

// Outcome acknowledges delete and restore.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CategoryStat aggregates one category.
type CategoryStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Size     int64  `json:"size"`
}

// ExtensionStat aggregates one extension.
type ExtensionStat struct {
	Extension string `json:"extension"`
	Count     int64  `json:"count"`
	Size      int64  `json:"size"`
}

// SizeBucket counts files in a size range.
type SizeBucket struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// DailyUploads counts uploads on one day.
type DailyUploads struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
	Size  int64  `json:"size"`
}

// Stats summarises the store.
type Stats struct {
	TotalFiles       int64           `json:"total_files"`
	TotalSize        int64           `json:"total_size"`
	TotalDownloads   int64           `json:"total_downloads"`
	CategoryStats    []CategoryStat  `json:"category_stats"`
	ExtensionStats   []ExtensionStat `json:"extension_stats"`
	SizeDistribution []SizeBucket    `json:"size_distribution"`
	DailyUploads     []DailyUploads  `json:"daily_upload_stats,omitempty"`
}

// Checksum is the server-side MD5 of a file.
type Checksum struct {
	UUID string `json:"file_uuid"`
	Name string `json:"file_name"`
	MD5  string `json:"file_md5"`
	Size int64  `json:"file_size"`
}

// ChecksumMismatchError reports a failed integrity check.
type ChecksumMismatchError struct {
	UUID     string
	Expected string
	Actual   string
	Source   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected md5 %s, %s md5 %s", e.UUID, e.Expected, e.Source, e.Actual)
}

// API exposes /file/* operations.
type API struct {
	c apiclient.StreamRequester
}

// New creates an API on top of c.
func New(c apiclient.StreamRequester) *API {
	return &API{c: c}
}

func uuidPath(prefix, uuid string) string {
	return prefix + url.PathEscape(uuid)
}

// Upload streams r to the backend as multipart field "file". category is
// optional.
func (a *API) Upload(ctx context.Context, name string, r io.Reader, category string) (*Uploaded, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		if category != "" {
			if err := mw.WriteField("category", category); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req := &apiclient.Request{
		Method: http.MethodPost,
		Path:   "/file/upload",
		Body:   pr,
		Header: http.Header{"Content-Type": {mw.FormDataContentType()}},
	}

	var out Uploaded
	err := a.c.Do(ctx, req, &out)
	// Unblocks the writer goroutine if the request ended early.
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return &out, nil
}

// List returns a page of files with every entry's Category filled in and
// missing pagination fields defaulted.
func (a *API) List(ctx context.Context, p ListParams) (*List, error) {
	var out List
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/file/list", Query: p}, &out); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	normalizeList(&out)
	return &out, nil
}

func normalizeList(l *List) {
	if l.List == nil {
		l.List = []Entry{}
	}
	for i := range l.List {
		e := &l.List[i]
		switch {
		case e.FileCategory != "":
			e.Category = e.FileCategory
		case e.Category != "":
		default:
			e.Category = Uncategorized
		}
	}
	if l.Page <= 0 {
		l.Page = 1
	}
	if l.PageSize <= 0 {
		l.PageSize = 10
	}
}

// Info fetches the record of uuid.
func (a *API) Info(ctx context.Context, uuid string) (*Info, error) {
	var out Info
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: uuidPath("/file/info/", uuid)}, &out); err != nil {
		return nil, fmt.Errorf("get file %s: %w", uuid, err)
	}
	return &out, nil
}

// Delete soft-deletes uuid.
func (a *API) Delete(ctx context.Context, uuid string) (*Outcome, error) {
	var out Outcome
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: uuidPath("/file/delete/", uuid)}, &out); err != nil {
		return nil, fmt.Errorf("delete file %s: %w", uuid, err)
	}
	return &out, nil
}

// Restore undoes a soft delete.
func (a *API) Restore(ctx context.Context, uuid string) (*Outcome, error) {
	var out Outcome
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: uuidPath("/file/restore/", uuid)}, &out); err != nil {
		return nil, fmt.Errorf("restore file %s: %w", uuid, err)
	}
	return &out, nil
}

// Stats returns store-wide statistics.
func (a *API) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: "/file/stats"}, &out); err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}
	return &out, nil
}

// MD5 returns the checksum the server recorded for uuid.
func (a *API) MD5(ctx context.Context, uuid string) (*Checksum, error) {
	var out Checksum
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: uuidPath("/file/md5/", uuid)}, &out); err != nil {
		return nil, fmt.Errorf("get md5 of %s: %w", uuid, err)
	}
	return &out, nil
}

// DownloadURL returns the absolute download link for uuid.
func (a *API) DownloadURL(uuid string) string {
	return a.c.URL(uuidPath("/file/download/", uuid))
}

// ThumbnailURL returns the absolute thumbnail link for uuid. Zero
// dimensions leave the server defaults in place.
func (a *API) ThumbnailURL(uuid string, width, height int) string {
	path := uuidPath("/file/thumbnail/", uuid)
	q := url.Values{}
	if width > 0 {
		q.Set("width", fmt.Sprint(width))
	}
	if height > 0 {
		q.Set("height", fmt.Sprint(height))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return a.c.URL(path)
}

// Download copies the content of uuid into w and returns the byte count.
func (a *API) Download(ctx context.Context, uuid string, w io.Writer) (int64, error) {
	n, _, err := a.download(ctx, uuid, w)
	return n, err
}

// DownloadVerified downloads uuid into w and then checks the server's
// recorded MD5 against expected and against the received bytes. An empty
// expected skips the comparison with the caller's value.
func (a *API) DownloadVerified(ctx context.Context, uuid string, w io.Writer, expected string) (int64, error) {
	n, local, err := a.download(ctx, uuid, w)
	if err != nil {
		return n, err
	}

	sum, err := a.MD5(ctx, uuid)
	if err != nil {
		return n, err
	}
	server := strings.ToLower(sum.MD5)

	if expected != "" && server != strings.ToLower(expected) {
		return n, &ChecksumMismatchError{UUID: uuid, Expected: expected, Actual: sum.MD5, Source: "server"}
	}
	if server != "" && local != server {
		return n, &ChecksumMismatchError{UUID: uuid, Expected: server, Actual: local, Source: "downloaded"}
	}
	return n, nil
}

func (a *API) download(ctx context.Context, uuid string, w io.Writer) (int64, string, error) {
	resp, err := a.c.Stream(ctx, &apiclient.Request{
		Method: http.MethodGet,
		Path:   uuidPath("/file/download/", uuid),
		Header: http.Header{"Accept": {"*/*"}},
	})
	if err != nil {
		return 0, "", fmt.Errorf("download %s: %w", uuid, err)
	}
	defer resp.Body.Close()

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(w, h), resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("download %s: %w", uuid, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
