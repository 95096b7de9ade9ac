package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/pipeline"
	"github.com/chaz8081/vadscribe/internal/transcribe"
)

var (
	// Global flags
	configPath string
	verbose    bool
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "vadscribe",
	Short: "VAD-segmented concurrent speech transcription",
	Long: `vadscribe - split speech into utterances and transcribe them concurrently.

Audio is cut into utterances with an energy voice activity detector, each
utterance is padded with surrounding context, and every segment is sent to
an offline recognizer (whisper.cpp or an OpenAI-compatible API) in parallel.

Configuration is read from ~/.config/vadscribe/config.yaml when present.

Examples:
  vadscribe init
  vadscribe models base.en
  vadscribe live
  vadscribe file talk.wav meeting.mp4
  vadscribe watch ~/Recordings`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/vadscribe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", -1, "concurrent recognitions (0 = auto, default from config)")

	rootCmd.AddCommand(liveCmd, fileCmd, watchCmd, modelsCmd, initCmd)
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if workers >= 0 {
		cfg.Scheduler.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	if fromFile != "" {
		log.Debug("config loaded", "path", fromFile)
	} else {
		log.Debug("no config file found, using defaults")
	}
	return cfg, log, nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults. It returns the file
// that was read, if any.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, defaultPath, nil
	}

	return config.Default(), "", nil
}

// newPipeline loads the recognizer and maps the config onto pipeline
// options. The caller must close the recognizer.
func newPipeline(cfg *config.Config, log *slog.Logger) (transcribe.Recognizer, pipeline.Options, error) {
	log.Info("loading recognizer", "backend", cfg.Transcribe.Backend)
	start := time.Now()
	rec, err := transcribe.New(&cfg.Transcribe)
	if err != nil {
		if cfg.Transcribe.Backend == "whisper" {
			return nil, pipeline.Options{}, fmt.Errorf("%w\n\nCheck that the model file exists at: %s\nRun 'vadscribe models' to download it", err, cfg.Transcribe.ModelPath)
		}
		return nil, pipeline.Options{}, err
	}
	log.Info("recognizer ready", "elapsed", time.Since(start).Round(time.Millisecond),
		"workers", pipeline.Workers(cfg.Scheduler.Workers, rec))

	opts, err := pipeline.OptionsFromConfig(cfg, rec, log)
	if err != nil {
		_ = rec.Close()
		return nil, pipeline.Options{}, err
	}
	return rec, opts, nil
}
