package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnabled(t *testing.T) *Telemetry {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tel, err := New(ctx, Config{Enabled: true, ServiceName: "grabber-test"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	return tel
}

func scrape(t *testing.T, tel *Telemetry) string {
	t.Helper()

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestResourceCarriesServiceVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := New(ctx, Config{Enabled: true, ServiceName: "grabber-test", ServiceVersion: "1.2.3"})
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	body := scrape(t, tel)
	assert.Contains(t, body, "target_info")
	assert.Contains(t, body, `service_name="grabber-test"`)
	assert.Contains(t, body, `service_version="1.2.3"`)
}

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	called := false
	err = tel.InstrumentDownload(context.Background(), nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	tel.RecordBytes(context.Background(), 10)
	tel.RecordPause(context.Background())

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilTelemetryInstrumentation(t *testing.T) {
	var tel *Telemetry

	boom := errors.New("boom")
	err := tel.InstrumentHistoryOperation(context.Background(), "json", "append", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestInstrumentDownloadRecordsKind(t *testing.T) {
	tel := newEnabled(t)

	boom := errors.New("boom")
	err := tel.InstrumentDownload(context.Background(), func(error) string { return "transport" }, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, tel.InstrumentDownload(context.Background(), nil, func(ctx context.Context) error {
		tel.RecordBytes(ctx, 2048)
		return nil
	}))

	body := scrape(t, tel)
	assert.Contains(t, body, "downloads_total")
	assert.Contains(t, body, `kind="transport"`)
	assert.Contains(t, body, "download_bytes")
}

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	tel := newEnabled(t)

	h := NewHTTPMiddleware(tel).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/downloads", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := scrape(t, tel)
	assert.Contains(t, body, "http_requests")
	assert.Contains(t, body, `status="4xx"`)
}

func TestRequestID(t *testing.T) {
	var seen string

	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
}

func TestGetStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		204: "2xx",
		302: "3xx",
		404: "4xx",
		503: "5xx",
		100: "unknown",
	}

	for code, want := range tests {
		assert.Equal(t, want, getStatusClass(code), code)
	}
}

func TestResponseWriterSingleHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	_, _ = rw.Write([]byte("ok"))
	rw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rw.status)
	assert.Equal(t, int64(2), rw.bytesWritten)
}
