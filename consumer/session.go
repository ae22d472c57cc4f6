package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrRequestAborted marks a read loop that ended because its session was
// stopped or superseded.
var ErrRequestAborted = errors.New("request aborted")

// TransportError is any failure of the request or the response body that
// was not caused by cancellation.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Session is the state of one request. Its mutable fields are guarded by the
// owning Consumer's mutex.
type Session struct {
	ID      uint64
	Total   int
	Started time.Time

	received int
	chunks   int
	pending  int
	loading  bool
	aborted  bool
	readDone bool

	ctx    context.Context
	cancel context.CancelFunc

	settled    chan struct{}
	settleOnce sync.Once
}

// Settled is closed once the session can no longer change: the stream ended
// and every dispatched chunk was handled, or the session was aborted.
func (s *Session) Settled() <-chan struct{} {
	return s.settled
}

func (s *Session) settle() {
	s.settleOnce.Do(func() { close(s.settled) })
}

// Progress is received/total as a percentage. An empty request counts as
// complete.
func Progress(received, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(received) / float64(total) * 100
}

// FormatProgress clamps p to [0, 100] and keeps one decimal.
func FormatProgress(p float64) string {
	p = min(max(p, 0), 100)
	return strconv.FormatFloat(p, 'f', 1, 64)
}
