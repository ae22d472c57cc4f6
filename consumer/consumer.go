// Package consumer requests a point stream, feeds its chunks through the
// decode worker and renders the decoded batches while tracking progress.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"pointstream/api"
	"pointstream/decoder"
	"pointstream/generator"

	"github.com/apex/log"
	"github.com/apex/log/handlers/multi"
)

// Renderer is the drawing surface the consumer paints into.
type Renderer interface {
	Clear()
	DrawGrid(step float64)
	DrawPolyline(values []float32) int
}

type Options struct {
	ServerURL   string
	ChunkPoints int
	QueueSize   int
	GridStep    float64
	HTTPClient  *http.Client

	// Echo receives a copy of every panel message.
	Echo log.Handler

	// OnUpdate is called with the consumer mutex held after every state
	// change. It must not call back into the Consumer.
	OnUpdate func(api.StatusResponse)
}

type Consumer struct {
	opts       Options
	client     *http.Client
	surface    Renderer
	panel      *LogPanel
	logger     *log.Logger
	worker     *decoder.Worker
	frameBytes int
	chunkWarn  sync.Once

	baseCtx  context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	session *Session
	nextID  uint64

	// drawMu is held while a batch is drawn. A reset requested during a draw
	// is parked in reset and applied by the drawing goroutine.
	drawMu sync.Mutex
	reset  *surfaceReset

	readers sync.WaitGroup
	done    chan struct{}
	started bool
}

func New(opts Options, surface Renderer) *Consumer {
	if opts.ChunkPoints <= 0 {
		opts.ChunkPoints = generator.DefaultChunkPoints
	}
	if opts.GridStep <= 0 {
		opts.GridStep = 0.1
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	panel := NewLogPanel()
	var handler log.Handler = panel
	if opts.Echo != nil {
		handler = multi.New(panel, opts.Echo)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		opts:       opts,
		client:     client,
		surface:    surface,
		panel:      panel,
		logger:     &log.Logger{Handler: handler, Level: log.InfoLevel},
		worker:     decoder.NewWorker(opts.QueueSize),
		frameBytes: opts.ChunkPoints * generator.BytesPerPoint,
		baseCtx:    ctx,
		shutdown:   cancel,
		done:       make(chan struct{}),
	}
}

// Start launches the decode worker and the result handler.
func (c *Consumer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	go c.worker.Run()
	go c.handleResults()
}

// Close aborts the active session and stops the worker. The consumer cannot
// be used afterwards.
func (c *Consumer) Close() {
	c.mu.Lock()
	if c.session != nil {
		c.abortLocked(c.session)
	}
	started := c.started
	c.mu.Unlock()

	c.shutdown()
	c.readers.Wait()
	c.worker.Close()
	if started {
		<-c.done
	}
}

func (c *Consumer) Panel() *LogPanel {
	return c.panel
}

// Submit starts a new request for count points, superseding any request in
// flight.
func (c *Consumer) Submit(count int) *Session {
	if count < 0 {
		count = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetSurfaceLocked(surfaceReset{grid: true})
	c.panel.Clear()
	c.logger.Info("Rendering started")
	started := time.Now()

	if c.session != nil {
		c.abortLocked(c.session)
	}

	ctx, cancel := context.WithCancel(c.baseCtx)
	c.nextID++
	s := &Session{
		ID:      c.nextID,
		Total:   count,
		Started: started,
		loading: true,
		ctx:     ctx,
		cancel:  cancel,
		settled: make(chan struct{}),
	}
	c.session = s

	log.WithFields(log.Fields{
		"session": s.ID,
		"count":   count,
	}).Debug("consumer.submit")

	c.publishLocked()
	c.readers.Add(1)
	go c.readLoop(s)
	return s
}

// Stop cancels the active request and clears the surface and the log panel.
// It reports whether there was a request to stop.
func (c *Consumer) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return false
	}
	c.abortLocked(s)
	s.loading = false
	c.panel.Clear()
	c.resetSurfaceLocked(surfaceReset{})
	c.logger.Info("Rendering stopped")
	c.publishLocked()
	return true
}

func (c *Consumer) Status() api.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Consumer) Snapshot() api.StatusResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return api.StatusResponse{Status: c.statusLocked(), Messages: c.panel.Messages()}
}

func (c *Consumer) statusLocked() api.Status {
	s := c.session
	if s == nil {
		return api.Status{ProgressDisplay: FormatProgress(0)}
	}
	p := Progress(s.received, s.Total)
	return api.Status{
		SessionID:       s.ID,
		Total:           s.Total,
		Received:        s.received,
		Chunks:          s.chunks,
		Progress:        p,
		ProgressDisplay: FormatProgress(p),
		Loading:         s.loading,
	}
}

func (c *Consumer) publishLocked() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(api.StatusResponse{Status: c.statusLocked(), Messages: c.panel.Messages()})
	}
}

func (c *Consumer) abortLocked(s *Session) {
	if s.aborted {
		return
	}
	s.aborted = true
	s.cancel()
	s.settle()
}

func (c *Consumer) readLoop(s *Session) {
	defer c.readers.Done()
	err := c.fetch(s)

	c.mu.Lock()
	defer c.mu.Unlock()
	s.readDone = true
	defer c.maybeSettleLocked(s)

	if s.aborted || errors.Is(err, ErrRequestAborted) {
		log.WithField("session", s.ID).Info("Request aborted")
		return
	}
	s.loading = false
	if err != nil {
		c.logger.Errorf("Error fetching points: %v", err)
		c.publishLocked()
		return
	}
	elapsed := float64(time.Since(s.Started)) / float64(time.Millisecond)
	c.logger.Infof("Rendering completed in %.3f ms", elapsed)
	c.publishLocked()
}

func (c *Consumer) fetch(s *Session) error {
	url := fmt.Sprintf("%s%s?%s=%d", strings.TrimRight(c.opts.ServerURL, "/"), api.EndPointData, api.QueryCount, s.Total)
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return c.classify(s, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	frameBytes := c.responseFrameBytes(resp)
	for seq := 0; ; seq++ {
		frame := make([]byte, frameBytes)
		n, err := readFrame(resp.Body, frame)
		if n > 0 && (err == nil || err == io.EOF) {
			if err := c.dispatch(s, seq, frame[:n]); err != nil {
				return c.classify(s, err)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return c.classify(s, err)
		}
	}
}

// responseFrameBytes sizes read frames from the server's chunk header when it
// sends one, so progress follows server chunks.
func (c *Consumer) responseFrameBytes(resp *http.Response) int {
	raw := resp.Header.Get(api.HeaderChunkPoints)
	if raw == "" {
		return c.frameBytes
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.WithField("header", raw).Warn("consumer.chunk_points.invalid")
		return c.frameBytes
	}
	if n != c.opts.ChunkPoints {
		c.chunkWarn.Do(func() {
			log.WithFields(log.Fields{
				"configured": c.opts.ChunkPoints,
				"server":     n,
			}).Warn("consumer.chunk_points.mismatch")
		})
	}
	return n * generator.BytesPerPoint
}

func (c *Consumer) classify(s *Session, err error) error {
	if s.ctx.Err() != nil {
		return ErrRequestAborted
	}
	return &TransportError{Err: err}
}

// readFrame fills buf from r, returning early only on error. A stream that
// ends exactly at a frame boundary yields (0, io.EOF) on the next call.
func readFrame(r io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Consumer) dispatch(s *Session, seq int, data []byte) error {
	c.mu.Lock()
	s.pending++
	c.mu.Unlock()

	err := c.worker.Submit(s.ctx, decoder.Task{Seq: seq, Owner: s, Data: data})
	if err != nil {
		c.mu.Lock()
		s.pending--
		c.mu.Unlock()
	}
	return err
}

func (c *Consumer) handleResults() {
	defer close(c.done)
	for res := range c.worker.Results() {
		s, ok := res.Owner.(*Session)
		if !ok {
			continue
		}

		c.drawMu.Lock()
		c.mu.Lock()
		current := s == c.session && !s.aborted
		if current && res.Err == nil {
			s.received += res.Length / 2
			s.chunks++
		}
		c.mu.Unlock()

		if current && res.Err == nil {
			c.surface.DrawPolyline(res.Values)
		}

		c.mu.Lock()
		c.applyResetLocked()
		c.drawMu.Unlock()
		s.pending--
		if current && s == c.session && !s.aborted {
			if res.Err != nil {
				c.logger.Errorf("Failed to decode chunk %d: %v", res.Seq, res.Err)
			}
			c.publishLocked()
		}
		c.maybeSettleLocked(s)
		c.mu.Unlock()
	}
}

type surfaceReset struct {
	grid bool
}

// resetSurfaceLocked clears the surface now, or after the batch being drawn
// when a draw is in progress. The latest request wins.
func (c *Consumer) resetSurfaceLocked(r surfaceReset) {
	if !c.drawMu.TryLock() {
		c.reset = &r
		return
	}
	c.reset = &r
	c.applyResetLocked()
	c.drawMu.Unlock()
}

// applyResetLocked needs both c.mu and c.drawMu.
func (c *Consumer) applyResetLocked() {
	if c.reset == nil {
		return
	}
	c.surface.Clear()
	if c.reset.grid {
		c.surface.DrawGrid(c.opts.GridStep)
	}
	c.reset = nil
}

func (c *Consumer) maybeSettleLocked(s *Session) {
	if s.aborted || (s.readDone && s.pending == 0) {
		s.settle()
	}
}
