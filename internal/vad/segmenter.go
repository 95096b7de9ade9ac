package vad

import (
	"time"

	"github.com/chaz8081/vadscribe/internal/audio"
)

// Segment is one detected utterance. Start is the sample index of the first
// sample since the last Reset.
type Segment struct {
	Start   int
	Samples []float32
}

// End returns the sample index one past the last sample.
func (s Segment) End() int {
	return s.Start + len(s.Samples)
}

// Config tunes the segmenter. Zero fields take the defaults shown.
type Config struct {
	SampleRate         int           // 16000
	WindowSize         int           // 512 samples
	Threshold          float32       // 0.5
	MinSilenceDuration time.Duration // 250ms of non-speech ends an utterance
	MinSpeechDuration  time.Duration // 250ms of speech starts one
	MaxSpeechDuration  time.Duration // 0 means unlimited
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		SampleRate:         audio.SampleRate,
		WindowSize:         512,
		Threshold:          0.5,
		MinSilenceDuration: 250 * time.Millisecond,
		MinSpeechDuration:  250 * time.Millisecond,
		MaxSpeechDuration:  20 * time.Second,
	}
}

// hangoverMargin is how far below Threshold a window may score and still
// keep an active utterance alive.
const hangoverMargin = 0.15

// Segmenter turns a stream of sample chunks into speech segments.
//
// It is not safe for concurrent use; the goroutine feeding it owns it.
type Segmenter struct {
	det Detector
	cfg Config

	window     int
	minSpeech  int
	minSilence int
	maxSpeech  int

	last []float32 // leftover samples shorter than one window

	buf  []float32 // retained samples, buf[0] is at index head
	head int
	tail int // index one past the last retained sample
	// start is the index where the active utterance begins, or -1.
	start int

	triggered bool
	tempStart int
	tempEnd   int

	ready []Segment
}

// NewSegmenter builds a Segmenter around det.
func NewSegmenter(det Detector, cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MinSilenceDuration <= 0 {
		cfg.MinSilenceDuration = def.MinSilenceDuration
	}
	if cfg.MinSpeechDuration <= 0 {
		cfg.MinSpeechDuration = def.MinSpeechDuration
	}

	s := &Segmenter{
		det:        det,
		cfg:        cfg,
		window:     cfg.WindowSize,
		minSpeech:  audio.SamplesIn(cfg.MinSpeechDuration, cfg.SampleRate),
		minSilence: audio.SamplesIn(cfg.MinSilenceDuration, cfg.SampleRate),
		maxSpeech:  audio.SamplesIn(cfg.MaxSpeechDuration, cfg.SampleRate),
	}
	s.clear()
	return s
}

// Accept feeds a chunk of samples. Any length is accepted; windows that do
// not fit are carried over to the next call.
func (s *Segmenter) Accept(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	s.last = append(s.last, chunk...)

	n := 0
	for ; n+s.window <= len(s.last); n += s.window {
		s.processWindow(s.last[n : n+s.window])
	}
	if n > 0 {
		s.last = append(s.last[:0], s.last[n:]...)
	}
}

// HasReady reports whether a completed segment is waiting.
func (s *Segmenter) HasReady() bool {
	return len(s.ready) > 0
}

// Pop removes and returns the oldest completed segment. It returns false
// when the queue is empty.
func (s *Segmenter) Pop() (Segment, bool) {
	if len(s.ready) == 0 {
		return Segment{}, false
	}
	seg := s.ready[0]
	s.ready[0] = Segment{}
	s.ready = s.ready[1:]
	return seg, true
}

// IsSpeechActive reports whether an utterance is currently open.
func (s *Segmenter) IsSpeechActive() bool {
	return s.triggered
}

// Flush marks the end of the stream. An open utterance, or speech that has
// not yet lasted MinSpeechDuration, is queued as a final segment running to
// the last accepted sample.
func (s *Segmenter) Flush() {
	if len(s.last) > 0 {
		s.retain(s.last)
		s.last = s.last[:0]
	}

	start := s.start
	if start < 0 && s.tempStart >= 0 {
		start = max(s.head, s.tempStart-2*s.window)
	}
	if start >= 0 && s.tail > start {
		s.emit(start, s.tail)
	}

	s.buf = nil
	s.head = s.tail
	s.start = -1
	s.triggered = false
	s.tempStart = -1
	s.tempEnd = -1
}

// Reset clears all detector and segmenter state, including queued segments.
// Sample indices restart at zero.
func (s *Segmenter) Reset() {
	s.det.Reset()
	s.clear()
}

func (s *Segmenter) clear() {
	s.last = nil
	s.buf = nil
	s.head = 0
	s.tail = 0
	s.start = -1
	s.triggered = false
	s.tempStart = -1
	s.tempEnd = -1
	s.ready = nil
}

func (s *Segmenter) processWindow(w []float32) {
	voiced := s.classify(s.det.Probability(w))
	s.retain(w)

	if voiced {
		if s.start < 0 {
			s.start = max(s.tail-2*s.window-s.minSpeech, s.head)
		} else if s.maxSpeech > 0 && s.tail-s.start >= s.maxSpeech {
			s.emit(s.start, s.tail)
			s.start = s.tail
		}
		return
	}

	if s.start >= 0 {
		end := s.tail - s.minSilence
		if end > s.start {
			s.emit(s.start, end)
		}
		s.start = -1
		return
	}

	// Idle: keep only enough history to back off an onset.
	if keep := s.tail - 2*s.window - s.minSpeech; keep > s.head {
		s.drop(keep)
	}
}

// classify applies onset and hangover hysteresis to one window score.
// tail has not yet been advanced past the window being classified.
func (s *Segmenter) classify(prob float32) bool {
	end := s.tail + s.window
	thr := s.cfg.Threshold

	if prob >= thr {
		s.tempEnd = -1
		if s.triggered {
			return true
		}
		if s.tempStart < 0 {
			s.tempStart = s.tail
		}
		if end-s.tempStart >= s.minSpeech {
			s.triggered = true
			return true
		}
		return false
	}

	if !s.triggered {
		s.tempStart = -1
		return false
	}
	if prob >= thr-hangoverMargin {
		return true
	}
	if s.tempEnd < 0 {
		s.tempEnd = end
	}
	if end-s.tempEnd < s.minSilence {
		return true
	}
	s.triggered = false
	s.tempStart = -1
	s.tempEnd = -1
	return false
}

func (s *Segmenter) retain(w []float32) {
	s.buf = append(s.buf, w...)
	s.tail += len(w)
}

// emit queues a copy of [from, to) and discards retained samples before to.
func (s *Segmenter) emit(from, to int) {
	from = max(from, s.head)
	to = min(to, s.tail)
	if to <= from {
		return
	}
	samples := make([]float32, to-from)
	copy(samples, s.buf[from-s.head:to-s.head])
	s.ready = append(s.ready, Segment{Start: from, Samples: samples})
	s.drop(to)
}

// drop discards retained samples before index i.
func (s *Segmenter) drop(i int) {
	i = min(i, s.tail)
	if i <= s.head {
		return
	}
	s.buf = append([]float32(nil), s.buf[i-s.head:]...)
	s.head = i
}
