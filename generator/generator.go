// Package generator produces the synthetic point pattern and writes it as a
// stream of little-endian float32 chunks.
package generator

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	DefaultChunkPoints = 100_000
	DefaultCount       = 1000

	FloatsPerPoint = 2
	BytesPerFloat  = 4
	BytesPerPoint  = FloatsPerPoint * BytesPerFloat
)

// Stats describes what a Stream call wrote.
type Stats struct {
	Chunks int
	Points int
	Bytes  int
}

type Generator struct {
	chunkPoints int
}

// New returns a generator emitting at most chunkPoints points per chunk.
// Non-positive values select DefaultChunkPoints.
func New(chunkPoints int) *Generator {
	if chunkPoints <= 0 {
		chunkPoints = DefaultChunkPoints
	}
	return &Generator{chunkPoints: chunkPoints}
}

func (g *Generator) ChunkPoints() int {
	return g.chunkPoints
}

// ChunkSizes lists the point count of every chunk emitted for count.
func (g *Generator) ChunkSizes(count int) []int {
	if count <= 0 {
		return nil
	}
	sizes := make([]int, 0, (count+g.chunkPoints-1)/g.chunkPoints)
	for offset := 0; offset < count; offset += g.chunkPoints {
		sizes = append(sizes, min(g.chunkPoints, count-offset))
	}
	return sizes
}

// Points builds one chunk of size points as interleaved x, y values.
// x restarts at 0 in every chunk.
func Points(size int) []float32 {
	values := make([]float32, size*FloatsPerPoint)
	for i := 0; i < size; i++ {
		values[i*2] = float32(i) / float32(size)
		if i%2 == 0 {
			values[i*2+1] = 1
		}
	}
	return values
}

// Encode serializes values as little-endian float32 bytes, padded to a
// multiple of 4.
func Encode(values []float32) []byte {
	buf := make([]byte, len(values)*BytesPerFloat)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*BytesPerFloat:], math.Float32bits(v))
	}
	return Pad4(buf)
}

// Pad4 zero-pads b up to the next multiple of 4 bytes.
func Pad4(b []byte) []byte {
	if rem := len(b) % 4; rem != 0 {
		return append(b, make([]byte, 4-rem)...)
	}
	return b
}

// Stream writes the chunks for count to w, one Write call per chunk, and
// flushes after each chunk when w supports it.
func (g *Generator) Stream(ctx context.Context, count int, w io.Writer) (Stats, error) {
	var stats Stats
	flusher, _ := w.(http.Flusher)

	for _, size := range g.ChunkSizes(count) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		chunk := Encode(Points(size))
		n, err := w.Write(chunk)
		stats.Bytes += n
		if err != nil {
			return stats, fmt.Errorf("write chunk %d: %w", stats.Chunks, err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		stats.Chunks++
		stats.Points += size
	}
	return stats, nil
}

// ParseCount reads the leading integer of raw the way a lenient form parser
// would ("12abc" is 12, "3.9" is 3). It returns def and false when raw holds
// no usable integer. Negative counts clamp to zero.
func ParseCount(raw string, def int) (int, bool) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return def, false
	}
	if n < 0 {
		n = 0
	}
	return n, true
}
