package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/italolelis/grabber/internal/downloader"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/storage/jsonfile"
	"github.com/italolelis/grabber/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *downloader.Downloader, string) {
	t.Helper()

	dir := t.TempDir()
	d := downloader.NewDownloader(
		transfer.NewEngine(transfer.DefaultConfig(), nil, nil),
		jsonfile.NewStore(filepath.Join(dir, "history.json")),
		dir,
	)

	return NewDownloadsHandler(d).Routes(), d, dir
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func origin(body string, release <-chan struct{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))

		if release != nil {
			w.(http.Flusher).Flush()

			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}

		_, _ = w.Write([]byte(body))
	}))
}

func TestHandleStart_AcceptsAndRecordsHistory(t *testing.T) {
	srv := origin("hello world", nil)
	defer srv.Close()

	h, d, dir := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/downloads", `{"url":"`+srv.URL+`/f","path":"f.txt"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status downloader.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, srv.URL+"/f", status.URL)
	assert.NotEmpty(t, status.ID)

	require.NoError(t, d.Wait(context.Background()))

	rec = do(t, h, http.MethodGet, "/downloads/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, downloader.StateCompleted, status.State)

	rec = do(t, h, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []storage.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Equal(t, []storage.Record{{URL: srv.URL + "/f", FilePath: filepath.Join(dir, "f.txt")}}, records)
}

func TestHandleStart_BadRequests(t *testing.T) {
	h, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"invalid url", `{"url":"not a url","path":"x"}`},
		{"missing path", `{"url":"http://example.com/x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/downloads", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleStart_ConflictWhileRunning(t *testing.T) {
	release := make(chan struct{})
	srv := origin(strings.Repeat("a", 2048), release)
	defer srv.Close()

	h, d, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/downloads", `{"url":"`+srv.URL+`","path":"a"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/downloads", `{"url":"`+srv.URL+`","path":"b"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/downloads/current/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paused":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/downloads/current/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paused":false}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/downloads/current/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paused":true}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/downloads/current/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paused":false}`, rec.Body.String())

	close(release)
	require.NoError(t, d.Wait(context.Background()))
}

func TestControls_NotFoundWithoutJob(t *testing.T) {
	h, _, _ := newTestHandler(t)

	for _, path := range []string{"/downloads/current/pause", "/downloads/current/resume", "/downloads/current/toggle"} {
		rec := do(t, h, http.MethodPost, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := do(t, h, http.MethodGet, "/downloads/current", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
