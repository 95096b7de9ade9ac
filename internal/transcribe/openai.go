package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/config"
)

// OpenAIRecognizer sends each utterance to an OpenAI-compatible
// transcription endpoint as a 16-bit WAV upload. Sessions share only the
// HTTP client and may run concurrently.
type OpenAIRecognizer struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIRecognizer creates a remote recognizer. The API key is read from
// the environment variable named by cfg.APIKeyEnv. Extra options are
// appended after the configured ones.
func NewOpenAIRecognizer(cfg config.OpenAIConfig, language string, opts ...option.RequestOption) (*OpenAIRecognizer, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("transcribe: openai model must not be empty")
	}

	var clientOpts []option.RequestOption
	if cfg.APIKeyEnv != "" {
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("transcribe: environment variable %s is not set", cfg.APIKeyEnv)
		}
		clientOpts = append(clientOpts, option.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	client := openai.NewClient(clientOpts...)

	return &OpenAIRecognizer{client: &client, model: cfg.Model, language: language}, nil
}

// Close implements Recognizer. The HTTP client holds nothing to release.
func (r *OpenAIRecognizer) Close() error { return nil }

// NewSession implements Recognizer.
func (r *OpenAIRecognizer) NewSession() (Session, error) {
	return &openAISession{r: r}, nil
}

type openAISession struct {
	r       *OpenAIRecognizer
	samples []float32
	rate    int
	text    string
}

func (s *openAISession) Feed(samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	s.samples = samples
	s.rate = sampleRate
	return nil
}

func (s *openAISession) Decode(ctx context.Context) error {
	body, err := audio.EncodeWAV(s.samples, s.rate)
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(body), "segment.wav", "audio/wav"),
		Model: openai.AudioModel(s.r.model),
	}
	if s.r.language != "" {
		params.Language = openai.String(s.r.language)
	}

	res, err := s.r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai transcription: %w", err)
	}
	s.text = res.Text
	return nil
}

func (s *openAISession) Text() string { return s.text }

func (s *openAISession) Release() { s.samples = nil }
