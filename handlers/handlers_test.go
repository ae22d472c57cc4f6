package handlers

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"pointstream/api"
	"pointstream/database"
	"pointstream/generator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu   sync.Mutex
	runs []database.StreamRun
}

func (f *fakeRecorder) RecordStream(ctx context.Context, run database.StreamRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func serve(h *Handlers, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	h.GetData(c)
	return w
}

func TestGetData(t *testing.T) {
	testCases := []struct {
		name   string
		target string
		points int
	}{
		{name: "explicit count", target: "/api/data?count=250000", points: 250000},
		{name: "missing count", target: "/api/data", points: 1000},
		{name: "malformed count", target: "/api/data?count=abc", points: 1000},
		{name: "zero count", target: "/api/data?count=0", points: 0},
		{name: "negative count", target: "/api/data?count=-3", points: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			h := NewHandlers(generator.New(generator.DefaultChunkPoints), generator.DefaultCount, rec)

			w := serve(h, tc.target)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, api.ContentTypeOctetStream, w.Header().Get("Content-Type"))
			assert.Equal(t, "100000", w.Header().Get(api.HeaderChunkPoints))
			assert.Equal(t, tc.points*generator.BytesPerPoint, w.Body.Len())

			require.Len(t, rec.runs, 1)
			assert.Equal(t, tc.points, rec.runs[0].Points)
			assert.Equal(t, database.OutcomeCompleted, rec.runs[0].Outcome)
		})
	}
}

func TestGetDataPayload(t *testing.T) {
	h := NewHandlers(generator.New(generator.DefaultChunkPoints), generator.DefaultCount, nil)
	w := serve(h, "/api/data?count=abc")

	body := w.Body.Bytes()
	require.Len(t, body, 1000*generator.BytesPerPoint)
	for i := 0; i < 1000; i++ {
		x := math.Float32frombits(binary.LittleEndian.Uint32(body[i*8:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(body[i*8+4:]))
		assert.InDelta(t, float64(i)/1000, float64(x), 1e-6)
		if i%2 == 0 {
			assert.Equal(t, float32(1), y)
		} else {
			assert.Equal(t, float32(0), y)
		}
	}
}

func TestGetDataAbortedStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &fakeRecorder{}
	h := NewHandlers(generator.New(10), generator.DefaultCount, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/data?count=100", nil).WithContext(ctx)
	h.GetData(c)

	assert.Equal(t, 0, w.Body.Len())
	require.Len(t, rec.runs, 1)
	assert.Equal(t, database.OutcomeAborted, rec.runs[0].Outcome)
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(generator.New(0), generator.DefaultCount, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceName, resp.Service)
}
