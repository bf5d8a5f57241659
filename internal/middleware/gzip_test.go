package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler отвечает телом запроса с переданным типом и статусом.
func echoHandler(contentType string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestGzipMiddleware(t *testing.T) {
	const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	tests := []struct {
		name           string
		contentType    string
		status         int
		acceptGzip     bool
		gzipRequest    bool
		body           string
		wantEncoding   string
		wantStatusCode int
	}{
		{
			name:           "text report compressed",
			contentType:    "text/plain; charset=utf-8",
			status:         http.StatusOK,
			acceptGzip:     true,
			body:           "Daily Pool Tip Report",
			wantEncoding:   "gzip",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "json report compressed",
			contentType:    "application/json",
			status:         http.StatusOK,
			acceptGzip:     true,
			body:           `{"run_id":"r1"}`,
			wantEncoding:   "gzip",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "spreadsheet left as is",
			contentType:    xlsxType,
			status:         http.StatusOK,
			acceptGzip:     true,
			body:           "PK",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "client without gzip support",
			contentType:    "application/json",
			status:         http.StatusOK,
			body:           `{"run_id":"r2"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "error responses not compressed",
			contentType:    "text/plain; charset=utf-8",
			status:         http.StatusBadGateway,
			acceptGzip:     true,
			body:           "square unavailable",
			wantStatusCode: http.StatusBadGateway,
		},
		{
			name:           "gzip request body unpacked",
			contentType:    "application/json",
			status:         http.StatusOK,
			acceptGzip:     true,
			gzipRequest:    true,
			body:           `{"from":"2025-01-06","to":"2025-01-12"}`,
			wantEncoding:   "gzip",
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reqBody io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				reqBody = gzipBytes(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/sync", reqBody)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip, deflate")
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(echoHandler(tt.contentType, tt.status)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
			assert.Equal(t, tt.contentType, res.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", res.Header.Get("Vary"))
			assert.Equal(t, tt.body, readBody(t, res))
		})
	}
}

func TestGzipMiddleware_InvalidBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	rec := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
