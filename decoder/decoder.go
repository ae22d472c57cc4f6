// Package decoder turns raw stream chunks into float32 values on a worker goroutine.
package decoder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
)

const DefaultQueueSize = 16

var ErrInvalidChunkLength = errors.New("chunk byte length must be a multiple of 4")

// Decode reinterprets b as little-endian float32 values.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("decode %d bytes: %w", len(b), ErrInvalidChunkLength)
	}
	values := make([]float32, len(b)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return values, nil
}

// Task is one raw chunk handed to the worker. Owner is returned untouched in
// the matching Result so the sender can route it.
type Task struct {
	Seq   int
	Owner interface{}
	Data  []byte
}

type Result struct {
	Seq    int
	Owner  interface{}
	Values []float32
	Length int
	Err    error
}

// Worker decodes tasks on a single goroutine, so results come out in the
// order tasks went in.
type Worker struct {
	tasks   chan Task
	results chan Result

	closeOnce sync.Once
}

func NewWorker(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Worker{
		tasks:   make(chan Task, queueSize),
		results: make(chan Result, queueSize),
	}
}

// Submit queues a task, blocking while the queue is full.
func (w *Worker) Submit(ctx context.Context, task Task) error {
	select {
	case w.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) Results() <-chan Result {
	return w.results
}

// Run decodes until Close is called and the queue is drained, then closes
// the results channel.
func (w *Worker) Run() {
	defer close(w.results)
	for task := range w.tasks {
		values, err := Decode(task.Data)
		w.results <- Result{
			Seq:    task.Seq,
			Owner:  task.Owner,
			Values: values,
			Length: len(values),
			Err:    err,
		}
	}
}

// Close stops accepting tasks. Submit must not be called afterwards.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.tasks)
	})
}
