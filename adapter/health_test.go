package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalshm "github.com/srediag/cosim-shm/internal/shm"
	"github.com/srediag/cosim-shm/pkg/shm"
)

func openRegion(t *testing.T, path string) *shm.Region {
	t.Helper()
	p := internalshm.NewMemoryPlatform()
	p.Create(path, 4096)
	cfg := shm.DefaultConfig()
	cfg.Path = path
	cfg.Size = 4096
	cfg.Platform = p
	r, err := shm.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Dispose() })
	return r
}

func probe(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthHandler(t *testing.T) {
	reg := shm.NewRegistry()
	r := openRegion(t, "ram")
	require.NoError(t, reg.Add(r))
	h := NewHealthHandler(reg)

	assert.Equal(t, http.StatusOK, probe(t, h, "/live"))
	assert.Equal(t, http.StatusOK, probe(t, h, "/ready"))

	require.NoError(t, r.Dispose())
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, "/live"))
}

func TestHealthHandlerMissingBackingObject(t *testing.T) {
	reg := shm.NewRegistry()
	// Only the in-memory platform knows this object; the file is absent.
	require.NoError(t, reg.Add(openRegion(t, filepath.Join(t.TempDir(), "gone"))))
	h := NewHealthHandler(reg)

	assert.Equal(t, http.StatusOK, probe(t, h, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h, "/ready"))
}
