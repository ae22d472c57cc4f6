package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pointstream/api"
	"pointstream/config"
	"pointstream/consumer"
	"pointstream/generator"
	"pointstream/render"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		DefaultCount:   generator.DefaultCount,
		ChunkPoints:    generator.DefaultChunkPoints,
		AllowedOrigins: "*",
		GzipEnabled:    true,
		MetricsEnabled: true,
	}
}

func TestRouterServesData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/data?count=abc", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.ContentTypeOctetStream, w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, 1000*generator.BytesPerPoint, w.Body.Len())
}

func TestRouterCompressesOnRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/data?count=5000", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Len(t, body, 5000*generator.BytesPerPoint)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(testConfig(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/data?count=10", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pointstream_stream_points_total")
}

func TestRouterWithoutMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.MetricsEnabled = false
	router := NewRouter(cfg, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestEndToEnd drives the real router through the consumer, decoder and
// renderer over a live HTTP connection with compression negotiated.
func TestEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(NewRouter(testConfig(), nil))
	t.Cleanup(srv.Close)

	surface := render.NewSurface(render.DefaultWidth, render.DefaultHeight)
	c := consumer.New(consumer.Options{ServerURL: srv.URL}, surface)
	c.Start()
	t.Cleanup(c.Close)

	for _, count := range []int{0, 1, 1000, 250000} {
		s := c.Submit(count)
		select {
		case <-s.Settled():
		case <-time.After(10 * time.Second):
			t.Fatalf("count %d: session did not settle", count)
		}

		st := c.Status()
		assert.Equal(t, count, st.Received, "count %d", count)
		assert.Equal(t, len(generator.New(0).ChunkSizes(count)), st.Chunks, "count %d", count)
		assert.Equal(t, "100.0", st.ProgressDisplay, "count %d", count)
		assert.False(t, st.Loading)
	}
}
