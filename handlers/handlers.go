// Package handlers serves the point stream and the health check.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pointstream/api"
	"pointstream/database"
	"pointstream/generator"
	"pointstream/metrics"
	"pointstream/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const ServiceName = "pointstream"

// StreamRecorder stores finished stream runs.
type StreamRecorder interface {
	RecordStream(ctx context.Context, run database.StreamRun) error
}

type Handlers struct {
	gen          *generator.Generator
	defaultCount int
	recorder     StreamRecorder
}

// NewHandlers creates the stream handlers. recorder may be nil.
func NewHandlers(gen *generator.Generator, defaultCount int, recorder StreamRecorder) *Handlers {
	return &Handlers{
		gen:          gen,
		defaultCount: defaultCount,
		recorder:     recorder,
	}
}

// GetData streams count points as little-endian float32 chunks.
func (h *Handlers) GetData(c *gin.Context) {
	raw := c.Query(api.QueryCount)
	count, ok := generator.ParseCount(raw, h.defaultCount)
	if !ok {
		log.WithField("count", raw).Debug("stream.count.default")
	}

	logger := log.WithFields(log.Fields{
		"count":  count,
		"chunks": len(h.gen.ChunkSizes(count)),
		"client": c.ClientIP(),
	})
	logger.Info("stream.start")

	c.Header("Content-Type", api.ContentTypeOctetStream)
	c.Header("Cache-Control", "no-cache")
	c.Header(api.HeaderChunkPoints, strconv.Itoa(h.gen.ChunkPoints()))
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	metrics.StreamsInFlight.Inc()
	start := time.Now()
	stats, err := h.gen.Stream(c.Request.Context(), count, c.Writer)
	elapsed := time.Since(start)
	metrics.StreamsInFlight.Dec()

	outcome := database.OutcomeCompleted
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = database.OutcomeAborted
		logger.WithField("written_chunks", stats.Chunks).Info("stream.aborted")
	case err != nil:
		outcome = database.OutcomeFailed
		logger.WithError(err).WithField("written_chunks", stats.Chunks).Error("stream.failed")
	default:
		logger.WithField("elapsed", elapsed.String()).Info("stream.done")
	}
	metrics.ObserveStream(outcome, stats.Chunks, stats.Points, stats.Bytes, elapsed)

	if h.recorder != nil {
		run := database.StreamRun{
			Count:    count,
			Chunks:   stats.Chunks,
			Points:   stats.Points,
			Bytes:    stats.Bytes,
			Duration: elapsed,
			Outcome:  outcome,
			ClientIP: c.ClientIP(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.recorder.RecordStream(ctx, run); err != nil {
			log.WithError(err).Warn("stream.record.failed")
		}
	}
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	info := version.Get(ServiceName)
	c.JSON(http.StatusOK, api.HealthResponse{
		Status:  "healthy",
		Service: info.Service,
		Version: info.Version,
		GitSHA:  info.GitSHA,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}
