// Package audio provides sample sources, stream history and WAV helpers
// for mono 16 kHz float32 audio.
package audio

import (
	"context"
	"io"
	"sync"
)

// Source produces consecutive chunks of mono float32 samples.
// Next returns io.EOF once the stream has ended.
type Source interface {
	Next(ctx context.Context) ([]float32, error)
}

// BufferSource replays a fully decoded buffer in fixed-size chunks.
// The last chunk may be shorter.
type BufferSource struct {
	samples   []float32
	chunkSize int
	pos       int
}

// NewBufferSource returns a Source over samples. chunkSize defaults to 512.
func NewBufferSource(samples []float32, chunkSize int) *BufferSource {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	return &BufferSource{samples: samples, chunkSize: chunkSize}
}

// Next returns the next chunk. The chunk is a copy and may be retained.
func (s *BufferSource) Next(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.samples) {
		return nil, io.EOF
	}
	end := min(s.pos+s.chunkSize, len(s.samples))
	chunk := make([]float32, end-s.pos)
	copy(chunk, s.samples[s.pos:end])
	s.pos = end
	return chunk, nil
}

// Buffer is a complete, immutable sample buffer usable as padding history.
type Buffer []float32

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b) }

// CopyAt copies samples starting at off into dst, clamped to the buffer
// bounds, and returns the count copied.
func (b Buffer) CopyAt(dst []float32, off int) int {
	if off < 0 || off >= len(b) {
		return 0
	}
	return copy(dst, b[off:])
}

// History is the append-only sample log of a live session. Appends come
// from the capture loop; reads may run concurrently from any goroutine.
type History struct {
	mu      sync.RWMutex
	samples []float32
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds a chunk to the end of the history. Prior samples are never
// modified.
func (h *History) Append(chunk []float32) {
	h.mu.Lock()
	h.samples = append(h.samples, chunk...)
	h.mu.Unlock()
}

// Len returns the number of samples recorded so far.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// CopyAt copies samples starting at off into dst, clamped to what has been
// recorded, and returns the count copied.
func (h *History) CopyAt(dst []float32, off int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if off < 0 || off >= len(h.samples) {
		return 0
	}
	return copy(dst, h.samples[off:])
}

// Reset discards all samples. Only call it between sessions.
func (h *History) Reset() {
	h.mu.Lock()
	h.samples = nil
	h.mu.Unlock()
}
