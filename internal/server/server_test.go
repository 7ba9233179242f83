package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoreintake/internal/cache"
	"scoreintake/internal/config"
	"scoreintake/internal/store"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Data.DataDir = t.TempDir()
	cfg.Server.DevMode = true
	return cfg
}

func TestNewServer_StatusAndCORS(t *testing.T) {
	t.Parallel()

	s, err := NewServer(testConfig(t), "test", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.comp.Close() })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/imports", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMappingStoreBackends(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	st, err := OpenStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	comp := &Components{Store: st}

	m, err := comp.mappingStore(config.CacheConfig{Backend: "memory", MaxItems: 4}, nilLogger())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, m)

	m, err = comp.mappingStore(config.CacheConfig{Backend: "sqlite"}, nilLogger())
	require.NoError(t, err)
	assert.IsType(t, &store.MappingMemory{}, m)

	m, err = (&Components{}).mappingStore(config.CacheConfig{Backend: "sqlite"}, nilLogger())
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, m)

	_, err = comp.mappingStore(config.CacheConfig{Backend: "redis"}, nilLogger())
	assert.Error(t, err)

	_, err = comp.mappingStore(config.CacheConfig{Backend: "etcd"}, nilLogger())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	s, err := NewServer(testConfig(t), "test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func nilLogger() *zap.Logger { return zap.NewNop() }
