package files

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

const helloMD5 = "5d41402abc4b2a76b9719d911017c592"

func newTestAPI(t *testing.T, h http.Handler) (*API, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, HTTPClient: srv.Client(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	return New(c), srv.URL
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestUpload_Multipart(t *testing.T) {
	var gotName, gotContent, gotCategory, gotPath string
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotContent = string(data)
		gotCategory = r.FormValue("category")
		w.Write([]byte(`{"code":0,"data":{"file_uuid":"u1","file_name":"a.txt","file_size":5,"file_md5":"` + helloMD5 + `"}}`))
	}))

	res, err := api.Upload(context.Background(), "a.txt", strings.NewReader("hello"), "docs")
	require.NoError(t, err)
	assert.Equal(t, "/file/upload", gotPath)
	assert.Equal(t, "a.txt", gotName)
	assert.Equal(t, "hello", gotContent)
	assert.Equal(t, "docs", gotCategory)
	assert.Equal(t, "u1", res.UUID)
	assert.Equal(t, int64(5), res.Size)
}

func TestUpload_BusinessError(t *testing.T) {
	api, _ := newTestAPI(t, respond(`{"code":413,"message":"file too large"}`))

	_, err := api.Upload(context.Background(), "big.bin", bytes.NewReader(make([]byte, 64)), "")
	var be *apiclient.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "file too large", be.Message)
}

func TestList_Normalizes(t *testing.T) {
	var query string
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"code":0,"data":{"list":[
			{"file_uuid":"a","file_category":"image"},
			{"file_uuid":"b","category":"docs"},
			{"file_uuid":"c"}
		]}}`))
	}))

	res, err := api.List(context.Background(), ListParams{Keyword: "cat", SortBy: "created_at"})
	require.NoError(t, err)
	assert.Equal(t, "keyword=cat&sort_by=created_at", query)

	require.Len(t, res.List, 3)
	assert.Equal(t, "image", res.List[0].Category)
	assert.Equal(t, "docs", res.List[1].Category)
	assert.Equal(t, Uncategorized, res.List[2].Category)
	assert.Equal(t, int64(0), res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 10, res.PageSize)
	assert.Equal(t, 0, res.TotalPages)
}

func TestList_EmptyData(t *testing.T) {
	api, _ := newTestAPI(t, respond(`{"code":0,"data":{"total":0}}`))

	res, err := api.List(context.Background(), ListParams{})
	require.NoError(t, err)
	assert.NotNil(t, res.List)
	assert.Empty(t, res.List)
}

func TestDeleteAndRestore(t *testing.T) {
	var method, path string
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.Write([]byte(`{"code":0,"data":{"success":true,"message":"done"}}`))
	}))

	out, err := api.Delete(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/file/delete/u-1", path)

	_, err = api.Restore(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/file/restore/u-1", path)
}

func TestStats(t *testing.T) {
	api, _ := newTestAPI(t, respond(`{"code":0,"data":{"total_files":3,"total_size":1536,"category_stats":[{"category":"image","count":2,"size":1024}],"size_distribution":[{"range":"<1MB","count":3}]}}`))

	s, err := api.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalFiles)
	assert.Equal(t, "image", s.CategoryStats[0].Category)
	assert.Equal(t, "<1MB", s.SizeDistribution[0].Range)
}

func TestURLs(t *testing.T) {
	api, base := newTestAPI(t, respond(`{}`))

	assert.Equal(t, base+"/file/download/u1", api.DownloadURL("u1"))
	assert.Equal(t, base+"/file/thumbnail/u1", api.ThumbnailURL("u1", 0, 0))
	assert.Equal(t, base+"/file/thumbnail/u1?height=80&width=120", api.ThumbnailURL("u1", 120, 80))
}

func fileServer(content, serverMD5 string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/file/download/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(content))
	})
	mux.HandleFunc("/file/md5/u1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"file_uuid":"u1","file_md5":"` + serverMD5 + `","file_size":5}}`))
	})
	mux.HandleFunc("/file/download/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":404,"message":"file not found"}`))
	})
	return mux
}

func TestDownload(t *testing.T) {
	api, _ := newTestAPI(t, fileServer("hello", helloMD5))

	var buf bytes.Buffer
	n, err := api.Download(context.Background(), "u1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", buf.String())
}

func TestDownload_NotFound(t *testing.T) {
	api, _ := newTestAPI(t, fileServer("hello", helloMD5))

	_, err := api.Download(context.Background(), "missing", io.Discard)
	var te *apiclient.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Contains(t, err.Error(), "file not found")
}

func TestDownloadVerified(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		serverMD5 string
		expected  string
		source    string
	}{
		{name: "match", content: "hello", serverMD5: helloMD5, expected: helloMD5},
		{name: "match case insensitive", content: "hello", serverMD5: strings.ToUpper(helloMD5), expected: helloMD5},
		{name: "no expectation", content: "hello", serverMD5: helloMD5},
		{name: "server disagrees with caller", content: "hello", serverMD5: helloMD5, expected: "0000", source: "server"},
		{name: "corrupted transfer", content: "hellO", serverMD5: helloMD5, expected: helloMD5, source: "downloaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _ := newTestAPI(t, fileServer(tt.content, tt.serverMD5))

			var buf bytes.Buffer
			_, err := api.DownloadVerified(context.Background(), "u1", &buf, tt.expected)
			if tt.source == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.content, buf.String())
				return
			}
			var mismatch *ChecksumMismatchError
			require.True(t, errors.As(err, &mismatch), "got %v", err)
			assert.Equal(t, tt.source, mismatch.Source)
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0B"},
		{-3, "0B"},
		{512, "512B"},
		{1536, "1.5K"},
		{1 << 20, "1M"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.size); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestIconType(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/png", "image"},
		{"IMAGE/JPEG", "image"},
		{"video/mp4", "video"},
		{"audio/mpeg", "audio"},
		{"application/pdf", "pdf"},
		{"application/msword", "word"},
		{"application/vnd.ms-excel", "excel"},
		{"application/vnd.ms-powerpoint", "powerpoint"},
		{"application/zip", "archive"},
		{"application/x-7z-compressed", "archive"},
		{"text/plain", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		if got := IconType(tt.mime); got != tt.want {
			t.Errorf("IconType(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
