package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-crawler/internal/config"
	"stock-crawler/internal/observability"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Backoff.MinMS = 1
	cfg.Backoff.MaxMS = 5
	return &cfg
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("Symbol,Name\nAAPL,Apple Inc.\n"))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	body, err := f.Fetch(context.Background(), srv.URL+"/nasdaq.csv")
	require.NoError(t, err)

	assert.Equal(t, "Symbol,Name\nAAPL,Apple Inc.\n", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchClientErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amex.csv")
	require.NoError(t, os.WriteFile(path, []byte("Symbol\nIMO\n"), 0o644))

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	body, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Symbol\nIMO\n", string(body))
}
