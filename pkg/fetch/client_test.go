package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New(Opts{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Origin:  "https://example.org",
		Retries: 2,
		Logger:  zaptest.NewLogger(t),
	})
	c.SetSleep(func(time.Duration) {})
	return c
}

func TestGetJSONStampsHeaders(t *testing.T) {
	var gotKey, gotOrigin, gotReferer, gotRT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotOrigin = r.Header.Get("Origin")
		gotReferer = r.Header.Get("Referer")
		gotRT = r.Header.Get("x-api-rt")
		w.Write([]byte(`{"data":{"value":42}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var out struct {
		Data struct {
			Value int `json:"value"`
		} `json:"data"`
	}
	require.NoError(t, c.GetJSON(context.Background(), "elections", nil, &out))

	assert.Equal(t, 42, out.Data.Value)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "https://example.org", gotOrigin)
	assert.Equal(t, "https://example.org/", gotReferer)
	assert.NotEmpty(t, gotRT)
}

func TestGetJSONEncodesParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	params := url.Values{}
	params.Set("election_type", "abc123")
	require.NoError(t, testClient(t, srv.URL).GetJSON(context.Background(), "elections", params, nil))
	assert.Equal(t, "abc123", gotQuery.Get("election_type"))
}

func TestRetryOnRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	require.NoError(t, testClient(t, srv.URL).GetJSON(context.Background(), "stats", nil, &out))
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, out["ok"])
}

func TestExhaustedAttemptsReturnTypedError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := testClient(t, srv.URL).GetJSON(context.Background(), "missing", nil, nil)
	require.Error(t, err)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, OtherError, ferr.Kind)
	assert.Equal(t, 3, ferr.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConnectionErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	err := testClient(t, srv.URL).GetJSON(context.Background(), "elections", nil, nil)
	require.Error(t, err)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, ConnectionError, ferr.Kind)
}

func TestDownloadReturnsRawBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer srv.Close()

	body, err := testClient(t, srv.URL).Download(context.Background(), srv.URL+"/doc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body)
}

func TestGetJSONDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(t, srv.URL).GetJSON(context.Background(), "elections", nil, &out)
	require.Error(t, err)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, OtherError, ferr.Kind)
}

func TestCancelledContextStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testClient(t, srv.URL).GetJSON(ctx, "elections", nil, nil)
	require.Error(t, err)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, Timeout, ferr.Kind)
}
