// Package transcribe provides offline speech-to-text backends.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (default)
//   - openai: the OpenAI audio transcription API or a compatible server
//
// Every recognition follows the same session protocol: NewSession, Feed,
// Decode, Text, Release. Recognize runs it once with the release
// guaranteed.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chaz8081/vadscribe/internal/config"
)

// ErrUnknownBackend is returned by New for an unrecognized backend name.
var ErrUnknownBackend = errors.New("transcribe: unknown backend")

// Recognizer hands out independent decoding sessions.
type Recognizer interface {
	// NewSession acquires a per-call decoding context.
	NewSession() (Session, error)
	// Close releases backend resources.
	Close() error
}

// Session decodes exactly one utterance. Methods must be called in order:
// Feed, Decode, Text. Release must always be called, on every path.
type Session interface {
	Feed(samples []float32, sampleRate int) error
	Decode(ctx context.Context) error
	Text() string
	Release()
}

// Limiter is implemented by recognizers that cannot run unbounded
// concurrent sessions.
type Limiter interface {
	MaxConcurrency() int
}

// MaxConcurrency returns the session cap advertised by r, or 0 when r
// imposes none.
func MaxConcurrency(r Recognizer) int {
	if l, ok := r.(Limiter); ok {
		return l.MaxConcurrency()
	}
	return 0
}

// Recognize runs one full session over samples and returns the trimmed
// text.
func Recognize(ctx context.Context, r Recognizer, samples []float32, sampleRate int) (string, error) {
	s, err := r.NewSession()
	if err != nil {
		return "", fmt.Errorf("transcribe: new session: %w", err)
	}
	defer s.Release()

	if err := s.Feed(samples, sampleRate); err != nil {
		return "", fmt.Errorf("transcribe: feed: %w", err)
	}
	if err := s.Decode(ctx); err != nil {
		return "", fmt.Errorf("transcribe: decode: %w", err)
	}
	return strings.TrimSpace(s.Text()), nil
}

// New creates a Recognizer based on the config backend setting.
func New(cfg *config.TranscribeConfig) (Recognizer, error) {
	switch cfg.Backend {
	case "whisper", "":
		return NewWhisperRecognizer(cfg.ModelPath, cfg.Language, cfg.Threads)
	case "openai":
		return NewOpenAIRecognizer(cfg.OpenAI, cfg.Language)
	default:
		return nil, fmt.Errorf("%w %q (supported: whisper, openai)", ErrUnknownBackend, cfg.Backend)
	}
}
