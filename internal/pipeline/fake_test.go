package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/vadscribe/internal/pad"
	"github.com/chaz8081/vadscribe/internal/transcribe"
	"github.com/chaz8081/vadscribe/internal/vad"
)

const rate = 16000

// utterances builds a signal of square-wave bursts separated by a second of
// silence. Each burst lasts half a second at the given amplitude.
func utterances(amps ...float32) []float32 {
	var out []float32
	out = append(out, make([]float32, rate)...)
	for _, a := range amps {
		for j := 0; j < rate/2; j++ {
			if j%2 == 0 {
				out = append(out, a)
			} else {
				out = append(out, -a)
			}
		}
		out = append(out, make([]float32, rate)...)
	}
	return out
}

// peakLabel names a padded segment by its peak amplitude, e.g. "0.3".
func peakLabel(samples []float32) string {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return fmt.Sprintf("%.1f", peak)
}

// fakeRecognizer maps each segment's peak label to a scripted reply.
type fakeRecognizer struct {
	replies map[string]string
	fail    map[string]bool
	delays  map[string]time.Duration
	limit   int

	active   atomic.Int32
	peak     atomic.Int32
	sessions atomic.Int32
	released atomic.Int32
}

func newFakeRecognizer(replies map[string]string) *fakeRecognizer {
	return &fakeRecognizer{replies: replies, fail: map[string]bool{}, delays: map[string]time.Duration{}}
}

func (r *fakeRecognizer) NewSession() (transcribe.Session, error) {
	r.sessions.Add(1)
	return &fakeSession{r: r}, nil
}

func (r *fakeRecognizer) Close() error { return nil }

type fakeSession struct {
	r     *fakeRecognizer
	label string
	text  string
}

func (s *fakeSession) Feed(samples []float32, _ int) error {
	s.label = peakLabel(samples)
	return nil
}

func (s *fakeSession) Decode(ctx context.Context) error {
	n := s.r.active.Add(1)
	defer s.r.active.Add(-1)
	for {
		p := s.r.peak.Load()
		if n <= p || s.r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(s.r.delays[s.label]):
	case <-ctx.Done():
		return ctx.Err()
	}
	if s.r.fail[s.label] {
		return fmt.Errorf("engine error on %s", s.label)
	}
	s.text = s.r.replies[s.label]
	return nil
}

func (s *fakeSession) Text() string { return s.text }
func (s *fakeSession) Release()     { s.r.released.Add(1) }

type limitedFake struct{ *fakeRecognizer }

func (l limitedFake) MaxConcurrency() int { return l.limit }

// gatedRecognizer blocks every decode until release is closed.
type gatedRecognizer struct {
	release chan struct{}
	text    string
	started chan struct{}
}

func (g *gatedRecognizer) NewSession() (transcribe.Session, error) { return &gatedSession{g: g}, nil }
func (g *gatedRecognizer) Close() error                            { return nil }

type gatedSession struct{ g *gatedRecognizer }

func (s *gatedSession) Feed([]float32, int) error { return nil }
func (s *gatedSession) Decode(ctx context.Context) error {
	if s.g.started != nil {
		s.g.started <- struct{}{}
	}
	select {
	case <-s.g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (s *gatedSession) Text() string { return s.g.text }
func (s *gatedSession) Release()     {}

// fakeCapture serves queued chunks until closed.
type fakeCapture struct {
	chunks chan []float32
	closed atomic.Bool
}

func newFakeCapture(samples []float32, chunk int) *fakeCapture {
	c := &fakeCapture{chunks: make(chan []float32, len(samples)/chunk+1)}
	for i := 0; i < len(samples); i += chunk {
		c.chunks <- samples[i:min(i+chunk, len(samples))]
	}
	return c
}

func (c *fakeCapture) Next(ctx context.Context) ([]float32, error) {
	if c.closed.Load() {
		return nil, io.EOF
	}
	select {
	case chunk := <-c.chunks:
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeCapture) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeCapture) drained() bool { return len(c.chunks) == 0 }

type liveRecorder struct {
	mu        sync.Mutex
	fragments []Fragment
}

func (r *liveRecorder) Deliver(f Fragment) {
	r.mu.Lock()
	r.fragments = append(r.fragments, f)
	r.mu.Unlock()
}

func (r *liveRecorder) snapshot() []Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Fragment(nil), r.fragments...)
}

type batchRecorder struct {
	lines   []Line
	summary *Summary
	failed  error
}

func (r *batchRecorder) Line(l Line)              { r.lines = append(r.lines, l) }
func (r *batchRecorder) Done(s Summary)           { r.summary = &s }
func (r *batchRecorder) Fail(_ string, err error) { r.failed = err }

func (r *batchRecorder) texts() []string {
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text
	}
	return out
}

func testOptions(rec transcribe.Recognizer) Options {
	return Options{
		Recognizer:  rec,
		NewDetector: func() vad.Detector { return vad.NewEnergyDetector(0.02) },
		Padding: pad.AudioPlusSilence{
			Audio:      90 * time.Millisecond,
			Silence:    300 * time.Millisecond,
			SampleRate: rate,
		},
		Workers:    4,
		SampleRate: rate,
		ChunkSize:  512,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
