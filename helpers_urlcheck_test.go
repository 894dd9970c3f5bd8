// includenav/helpers_urlcheck_test.go
package includenav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker(t *testing.T) {
	var lastMethod atomic.Value
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		lastMethod.Store(r.Method)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	checker := newHTTPChecker(discardLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		want    URLStatus
		timeout time.Duration
	}{
		{"ok", "/ok", URLStatus{StatusCode: 200, StatusMessage: "OK"}, time.Second},
		{"not found", "/missing", URLStatus{StatusCode: 404, StatusMessage: "Not Found"}, time.Second},
		{"redirect is reported, not followed", "/moved", URLStatus{StatusCode: 302, StatusMessage: "Found"}, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.Check(ctx, srv.URL+tt.path, tt.timeout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, http.MethodHead, lastMethod.Load())

	t.Run("timeout", func(t *testing.T) {
		_, err := checker.Check(ctx, srv.URL+"/slow", 50*time.Millisecond)
		assert.ErrorIs(t, err, ErrNetworkUnreachable)
	})

	t.Run("unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()
		_, err := checker.Check(ctx, url+"/x", time.Second)
		assert.ErrorIs(t, err, ErrNetworkUnreachable)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := checker.Check(ctx, "http://[::1", time.Second)
		assert.ErrorIs(t, err, ErrNetworkUnreachable)
	})
}
