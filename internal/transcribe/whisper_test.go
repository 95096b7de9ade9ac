package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/vadscribe/internal/audio"
)

// whisperModelPath resolves the path to the whisper model relative to the project root.
func whisperModelPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.en.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s (run 'vadscribe models' first): %v", path, err)
	}
	return path
}

// jfkSamples loads the JFK sample shipped with whisper.cpp.
func jfkSamples(t *testing.T) []float32 {
	t.Helper()
	wavPath := filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav")
	if _, err := os.Stat(wavPath); err != nil {
		t.Skipf("WAV file not found at %s: %v", wavPath, err)
	}
	samples, err := audio.DecodeWAVFile(wavPath)
	if err != nil {
		t.Fatalf("decode WAV %s: %v", wavPath, err)
	}
	return samples
}

func TestNewWhisperRecognizer(t *testing.T) {
	path := whisperModelPath(t)

	r, err := NewWhisperRecognizer(path, "", 0)
	if err != nil {
		t.Fatalf("NewWhisperRecognizer(%q) returned error: %v", path, err)
	}
	if got := MaxConcurrency(r); got != 1 {
		t.Errorf("MaxConcurrency = %d, want 1", got)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
}

func TestNewWhisperRecognizerBadPath(t *testing.T) {
	_, err := NewWhisperRecognizer("/nonexistent/model.bin", "", 0)
	if err == nil {
		t.Fatal("NewWhisperRecognizer with bad path should return error")
	}
}

func TestWhisperRecognizeJFK(t *testing.T) {
	path := whisperModelPath(t)
	samples := jfkSamples(t)

	r, err := NewWhisperRecognizer(path, "en", 2)
	if err != nil {
		t.Fatalf("NewWhisperRecognizer: %v", err)
	}
	defer func() { _ = r.Close() }()

	text, err := Recognize(context.Background(), r, samples, audio.SampleRate)
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", text)
	}
}

func TestWhisperRecognizeSilence(t *testing.T) {
	path := whisperModelPath(t)

	r, err := NewWhisperRecognizer(path, "", 0)
	if err != nil {
		t.Fatalf("NewWhisperRecognizer: %v", err)
	}
	defer func() { _ = r.Close() }()

	// Silent audio should not error, just return empty-ish text
	if _, err := Recognize(context.Background(), r, make([]float32, 16000), audio.SampleRate); err != nil {
		t.Fatalf("Recognize on silence returned error: %v", err)
	}
}

func TestWhisperRejectsOtherRates(t *testing.T) {
	path := whisperModelPath(t)

	r, err := NewWhisperRecognizer(path, "", 0)
	if err != nil {
		t.Fatalf("NewWhisperRecognizer: %v", err)
	}
	defer func() { _ = r.Close() }()

	if _, err := Recognize(context.Background(), r, make([]float32, 8000), 8000); err == nil {
		t.Fatal("Recognize at 8 kHz should return error")
	}
}
