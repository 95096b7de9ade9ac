// Package config loads and validates vadscribe settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Padding    PaddingConfig    `yaml:"padding"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Output     OutputConfig     `yaml:"output"`
	Debug      DebugConfig      `yaml:"debug"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Source     string `yaml:"source"` // "mic" or "loopback"
	ChunkSize  int    `yaml:"chunk_size"`
}

// VADConfig tunes the energy detector and the segmenter hysteresis.
type VADConfig struct {
	Threshold          float32       `yaml:"threshold"`
	EnergyThreshold    float64       `yaml:"energy_threshold"`
	WindowSize         int           `yaml:"window_size"`
	MinSilenceDuration time.Duration `yaml:"min_silence_duration"`
	MinSpeechDuration  time.Duration `yaml:"min_speech_duration"`
	MaxSpeechDuration  time.Duration `yaml:"max_speech_duration"`
}

// PaddingConfig selects the context policy applied to each segment.
type PaddingConfig struct {
	Policy       string        `yaml:"policy"` // "audio_silence" or "silence"
	Silence      time.Duration `yaml:"silence"`
	Audio        time.Duration `yaml:"audio"`
	AudioSilence time.Duration `yaml:"audio_silence"`
	Order        string        `yaml:"order"` // "audio_outer" or "silence_outer"
}

// SchedulerConfig bounds recognition concurrency. Zero workers means auto.
type SchedulerConfig struct {
	Workers int `yaml:"workers"`
}

// TranscribeConfig holds recognizer backend settings.
type TranscribeConfig struct {
	Backend   string       `yaml:"backend"` // "whisper" or "openai"
	ModelPath string       `yaml:"model_path"`
	Language  string       `yaml:"language"`
	Threads   int          `yaml:"threads"`
	OpenAI    OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures the remote transcription backend.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
	Mode    string   `yaml:"mode"` // "hold" or "toggle"
}

// OutputConfig selects transcript sinks.
type OutputConfig struct {
	Inject       bool   `yaml:"inject"`
	InjectMethod string `yaml:"inject_method"` // "type" or "paste"
	SRT          bool   `yaml:"srt"`
	Color        bool   `yaml:"color"`
}

// DebugConfig holds diagnostics settings.
type DebugConfig struct {
	DumpDir string `yaml:"dump_dir"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vadscribe")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory model downloads are stored in.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "vadscribe", "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			SampleRate: 16000,
			Source:     "mic",
			ChunkSize:  512,
		},
		VAD: VADConfig{
			Threshold:          0.5,
			EnergyThreshold:    0.02,
			WindowSize:         512,
			MinSilenceDuration: 250 * time.Millisecond,
			MinSpeechDuration:  250 * time.Millisecond,
			MaxSpeechDuration:  20 * time.Second,
		},
		Padding: PaddingConfig{
			Policy:       "audio_silence",
			Silence:      500 * time.Millisecond,
			Audio:        90 * time.Millisecond,
			AudioSilence: 300 * time.Millisecond,
			Order:        "audio_outer",
		},
		Transcribe: TranscribeConfig{
			Backend:   "whisper",
			ModelPath: filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			OpenAI: OpenAIConfig{
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     "whisper-1",
			},
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "r"},
			Mode: "toggle",
		},
		Output: OutputConfig{
			InjectMethod: "type",
			SRT:          true,
			Color:        true,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)
	cfg.Debug.DumpDir = expandTilde(cfg.Debug.DumpDir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("audio.chunk_size must be > 0")
	}
	switch c.Audio.Source {
	case "mic", "loopback":
	default:
		return fmt.Errorf("audio.source must be \"mic\" or \"loopback\", got %q", c.Audio.Source)
	}

	if c.VAD.Threshold <= 0 || c.VAD.Threshold >= 1 {
		return fmt.Errorf("vad.threshold must be in (0, 1), got %v", c.VAD.Threshold)
	}
	if c.VAD.EnergyThreshold <= 0 {
		return fmt.Errorf("vad.energy_threshold must be > 0")
	}
	if c.VAD.WindowSize <= 0 {
		return fmt.Errorf("vad.window_size must be > 0")
	}
	if c.VAD.MinSilenceDuration < 0 || c.VAD.MinSpeechDuration < 0 {
		return fmt.Errorf("vad durations must not be negative")
	}
	if c.VAD.MaxSpeechDuration != 0 && c.VAD.MaxSpeechDuration <= c.VAD.MinSpeechDuration {
		return fmt.Errorf("vad.max_speech_duration must exceed vad.min_speech_duration")
	}

	switch c.Padding.Policy {
	case "audio_silence", "silence":
	default:
		return fmt.Errorf("padding.policy must be \"audio_silence\" or \"silence\", got %q", c.Padding.Policy)
	}
	switch c.Padding.Order {
	case "audio_outer", "silence_outer":
	default:
		return fmt.Errorf("padding.order must be \"audio_outer\" or \"silence_outer\", got %q", c.Padding.Order)
	}
	if c.Padding.Silence < 0 || c.Padding.Audio < 0 || c.Padding.AudioSilence < 0 {
		return fmt.Errorf("padding durations must not be negative")
	}

	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("scheduler.workers must be >= 0")
	}

	switch c.Transcribe.Backend {
	case "whisper":
		if c.Transcribe.ModelPath == "" {
			return fmt.Errorf("transcribe.model_path must not be empty")
		}
	case "openai":
		if c.Transcribe.OpenAI.Model == "" {
			return fmt.Errorf("transcribe.openai.model must not be empty")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"whisper\" or \"openai\", got %q", c.Transcribe.Backend)
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return fmt.Errorf("hotkey.keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
	}

	switch c.Output.InjectMethod {
	case "type", "paste":
	default:
		return fmt.Errorf("output.inject_method must be \"type\" or \"paste\", got %q", c.Output.InjectMethod)
	}

	return nil
}

// WriteDefault writes the default config to DefaultConfigPath. If a file
// already exists there it is left untouched and an empty path is returned.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	header := "# vadscribe configuration\n# Durations accept Go syntax such as 250ms or 20s.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
