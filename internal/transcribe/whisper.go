package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperRecognizer wraps a whisper.cpp model for speech-to-text.
//
// The bindings share model state between contexts, so decodes are
// serialized and MaxConcurrency reports 1.
type WhisperRecognizer struct {
	model    whisper.Model
	language string
	threads  uint

	mu sync.Mutex
}

// NewWhisperRecognizer loads a whisper model from the given path. An empty
// language keeps the model default; threads <= 0 keeps the bindings default.
// The caller must call Close() when done.
func NewWhisperRecognizer(modelPath, language string, threads int) (*WhisperRecognizer, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	r := &WhisperRecognizer{model: model, language: language}
	if threads > 0 {
		r.threads = uint(threads)
	}
	return r, nil
}

// MaxConcurrency implements Limiter.
func (r *WhisperRecognizer) MaxConcurrency() int { return 1 }

// Close releases the whisper model resources.
func (r *WhisperRecognizer) Close() error {
	if r.model != nil {
		return r.model.Close()
	}
	return nil
}

// NewSession implements Recognizer.
func (r *WhisperRecognizer) NewSession() (Session, error) {
	ctx, err := r.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("transcribe: create context: %w", err)
	}
	if r.language != "" {
		if err := ctx.SetLanguage(r.language); err != nil {
			return nil, fmt.Errorf("transcribe: set language %q: %w", r.language, err)
		}
	}
	if r.threads > 0 {
		ctx.SetThreads(r.threads)
	}
	return &whisperSession{r: r, ctx: ctx}, nil
}

type whisperSession struct {
	r       *WhisperRecognizer
	ctx     whisper.Context
	samples []float32
	text    string
}

func (s *whisperSession) Feed(samples []float32, sampleRate int) error {
	if sampleRate != whisper.SampleRate {
		return fmt.Errorf("whisper needs %d Hz audio, got %d", whisper.SampleRate, sampleRate)
	}
	s.samples = samples
	return nil
}

func (s *whisperSession) Decode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if err := s.ctx.Process(s.samples, nil, nil, nil); err != nil {
		return fmt.Errorf("process: %w", err)
	}

	var segments []string
	for {
		seg, err := s.ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("next segment: %w", err)
		}
		segments = append(segments, seg.Text)
	}
	s.text = strings.TrimSpace(strings.Join(segments, " "))
	return nil
}

func (s *whisperSession) Text() string { return s.text }

func (s *whisperSession) Release() {
	s.samples = nil
	s.ctx = nil
}
