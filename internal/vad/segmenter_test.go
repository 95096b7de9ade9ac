package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rate = 16000

// stream builds a test signal from alternating silence and speech spans,
// given in samples. Speech is a ±0.5 square wave.
func stream(spans ...int) []float32 {
	var out []float32
	for i, n := range spans {
		for j := 0; j < n; j++ {
			v := float32(0)
			if i%2 == 1 {
				v = 0.5
				if j%2 == 1 {
					v = -0.5
				}
			}
			out = append(out, v)
		}
	}
	return out
}

func newTestSegmenter(cfg Config) *Segmenter {
	return NewSegmenter(NewEnergyDetector(0.02), cfg)
}

// run feeds samples in chunks of the given size, flushes, and drains.
func run(s *Segmenter, samples []float32, chunk int) []Segment {
	var segs []Segment
	for i := 0; i < len(samples); i += chunk {
		s.Accept(samples[i:min(i+chunk, len(samples))])
		for s.HasReady() {
			seg, _ := s.Pop()
			segs = append(segs, seg)
		}
	}
	s.Flush()
	for s.HasReady() {
		seg, _ := s.Pop()
		segs = append(segs, seg)
	}
	return segs
}

func TestSegmenterSingleUtterance(t *testing.T) {
	s := newTestSegmenter(Config{})
	segs := run(s, stream(rate, rate, rate), 512)

	require.Len(t, segs, 1)
	seg := segs[0]
	// The onset backs off by up to two windows plus the minimum speech span.
	assert.LessOrEqual(t, seg.Start, rate)
	assert.GreaterOrEqual(t, seg.Start, rate-2*512-4000-512)
	assert.GreaterOrEqual(t, seg.End(), 2*rate)
	assert.LessOrEqual(t, seg.End(), 2*rate+4000+2*512)
	assert.Len(t, seg.Samples, seg.End()-seg.Start)
}

func TestSegmenterChunkSizeIndependent(t *testing.T) {
	samples := stream(8000, 12000, 9000, 6000, 10000)

	want := run(newTestSegmenter(Config{}), samples, 512)
	require.Len(t, want, 2)
	for _, chunk := range []int{1, 300, 512, 1000, 4096} {
		got := run(newTestSegmenter(Config{}), samples, chunk)
		require.Len(t, got, len(want), "chunk %d", chunk)
		for i := range want {
			assert.Equal(t, want[i].Start, got[i].Start, "chunk %d segment %d", chunk, i)
			assert.Equal(t, len(want[i].Samples), len(got[i].Samples), "chunk %d segment %d", chunk, i)
		}
	}
}

func TestSegmenterStartsIncrease(t *testing.T) {
	segs := run(newTestSegmenter(Config{}), stream(rate, rate/2, rate, rate/2, rate, rate/2, rate), 512)

	require.Len(t, segs, 3)
	for i := 1; i < len(segs); i++ {
		assert.GreaterOrEqual(t, segs[i].Start, segs[i-1].End(), "segments must not overlap")
	}
}

func TestSegmenterResetIsIdempotent(t *testing.T) {
	samples := stream(rate, rate, rate/2, rate, rate)
	s := newTestSegmenter(Config{})

	first := run(s, samples, 512)
	s.Reset()
	second := run(s, samples, 512)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestSegmenterResetClearsQueue(t *testing.T) {
	s := newTestSegmenter(Config{})
	s.Accept(stream(rate, rate, rate))
	require.True(t, s.HasReady())

	s.Reset()
	assert.False(t, s.HasReady())
	assert.False(t, s.IsSpeechActive())

	// Indices restart at zero after a reset.
	segs := run(s, stream(rate, rate, rate), 512)
	require.Len(t, segs, 1)
	assert.Less(t, segs[0].Start, rate)
}

func TestSegmenterFlushOpenUtterance(t *testing.T) {
	s := newTestSegmenter(Config{})
	samples := stream(rate, rate) // ends while speaking

	s.Accept(samples)
	assert.True(t, s.IsSpeechActive())
	assert.False(t, s.HasReady())

	s.Flush()
	require.True(t, s.HasReady())
	seg, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, len(samples), seg.End(), "final segment runs to the last sample")
	assert.LessOrEqual(t, seg.Start, rate)
	assert.False(t, s.HasReady(), "exactly one final segment")
}

func TestSegmenterFlushShortUtterance(t *testing.T) {
	s := newTestSegmenter(Config{})
	// 150ms of speech is shorter than the 250ms onset requirement.
	samples := stream(rate, 2400)

	s.Accept(samples)
	assert.False(t, s.HasReady())
	assert.False(t, s.IsSpeechActive())

	s.Flush()
	segs := []Segment{}
	for s.HasReady() {
		seg, _ := s.Pop()
		segs = append(segs, seg)
	}
	require.Len(t, segs, 1)
	assert.LessOrEqual(t, segs[0].Start, rate)
	assert.Equal(t, len(samples), segs[0].End())
}

func TestSegmenterFlushSilenceEmitsNothing(t *testing.T) {
	s := newTestSegmenter(Config{})
	s.Accept(stream(2 * rate))
	s.Flush()
	assert.False(t, s.HasReady())
}

func TestSegmenterShortBlipIgnoredWithoutFlush(t *testing.T) {
	segs := func() []Segment {
		s := newTestSegmenter(Config{})
		s.Accept(stream(rate, 1024, rate))
		var out []Segment
		for s.HasReady() {
			seg, _ := s.Pop()
			out = append(out, seg)
		}
		return out
	}()
	assert.Empty(t, segs)
}

func TestSegmenterMaxSpeechDuration(t *testing.T) {
	s := newTestSegmenter(Config{MaxSpeechDuration: time.Second})
	segs := run(s, stream(rate/2, 4*rate, rate), 512)

	require.GreaterOrEqual(t, len(segs), 3)
	for i, seg := range segs {
		assert.LessOrEqual(t, len(seg.Samples), rate+512, "segment %d exceeds max speech", i)
		if i > 0 {
			assert.Equal(t, segs[i-1].End(), seg.Start, "cut segments are contiguous")
		}
	}
}

func TestSegmenterIgnoresEmptyChunk(t *testing.T) {
	s := newTestSegmenter(Config{})
	s.Accept(nil)
	s.Accept([]float32{})
	s.Flush()
	assert.False(t, s.HasReady())
}

func TestPopEmpty(t *testing.T) {
	s := newTestSegmenter(Config{})
	_, ok := s.Pop()
	assert.False(t, ok)
}

func TestEnergyDetector(t *testing.T) {
	d := NewEnergyDetector(0.1)

	assert.Equal(t, float32(0), d.Probability(make([]float32, 512)))
	assert.Equal(t, float32(0), d.Probability(nil))

	w := make([]float32, 512)
	for i := range w {
		w[i] = 0.1
	}
	assert.InDelta(t, 0.5, d.Probability(w), 1e-6)

	for i := range w {
		w[i] = 0.9
	}
	assert.Equal(t, float32(1), d.Probability(w))
}
