package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/pad"
	"github.com/chaz8081/vadscribe/internal/transcribe"
	"github.com/chaz8081/vadscribe/internal/vad"
)

// Options configure live sessions and batch jobs.
type Options struct {
	Recognizer transcribe.Recognizer
	// NewDetector builds a fresh detector for each segmenter.
	NewDetector func() vad.Detector
	VAD         vad.Config
	Padding     pad.Policy
	Workers     int // 0 means auto
	SampleRate  int
	ChunkSize   int
	// DumpDir, when set, receives every padded segment as a WAV file.
	DumpDir string
	Logger  *slog.Logger
}

// OptionsFromConfig maps the loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config, rec transcribe.Recognizer, log *slog.Logger) (Options, error) {
	policy, err := pad.NewPolicy(cfg.Padding, cfg.Audio.SampleRate)
	if err != nil {
		return Options{}, err
	}
	energy := cfg.VAD.EnergyThreshold
	return Options{
		Recognizer:  rec,
		NewDetector: func() vad.Detector { return vad.NewEnergyDetector(energy) },
		VAD: vad.Config{
			SampleRate:         cfg.Audio.SampleRate,
			WindowSize:         cfg.VAD.WindowSize,
			Threshold:          cfg.VAD.Threshold,
			MinSilenceDuration: cfg.VAD.MinSilenceDuration,
			MinSpeechDuration:  cfg.VAD.MinSpeechDuration,
			MaxSpeechDuration:  cfg.VAD.MaxSpeechDuration,
		},
		Padding:    policy,
		Workers:    cfg.Scheduler.Workers,
		SampleRate: cfg.Audio.SampleRate,
		ChunkSize:  cfg.Audio.ChunkSize,
		DumpDir:    cfg.Debug.DumpDir,
		Logger:     log,
	}, nil
}

func (o *Options) fill() {
	if o.NewDetector == nil {
		o.NewDetector = func() vad.Detector { return vad.NewEnergyDetector(0.02) }
	}
	if o.SampleRate <= 0 {
		o.SampleRate = audio.SampleRate
	}
	if o.VAD.SampleRate <= 0 {
		o.VAD.SampleRate = o.SampleRate
	}
	if o.Padding == nil {
		o.Padding = pad.SymmetricSilence{SampleRate: o.SampleRate}
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 512
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// dump writes a padded segment for offline inspection. Failures are logged
// and otherwise ignored.
func dump(log *slog.Logger, dir, session string, idx int, seg pad.Segment, rate int) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("creating dump dir", "dir", dir, "error", err)
		return
	}
	name := fmt.Sprintf("%s-%04d-%d.wav", session, idx, seg.Start)
	if err := audio.WriteWAVFile(filepath.Join(dir, name), seg.Samples, rate); err != nil {
		log.Warn("dumping segment", "index", idx, "error", err)
	}
}
