package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/pipeline"
	"github.com/chaz8081/vadscribe/internal/sink"
)

var fileSRT bool

var fileCmd = &cobra.Command{
	Use:   "file <path>...",
	Short: "Transcribe audio or video files",
	Long: `Transcribe one or more files.

WAV files must be 16-bit mono at the configured sample rate; anything else
is converted with ffmpeg first. Lines are printed in time order once the
whole file has been recognized, and a .srt file is written next to each
input unless --srt=false.

Examples:
  vadscribe file talk.wav
  vadscribe file --workers 2 meeting.mp4 lecture.m4a`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFile,
}

func init() {
	fileCmd.Flags().BoolVar(&fileSRT, "srt", true, "write a .srt file next to each input (default from config)")
}

func runFile(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("srt") {
		cfg.Output.SRT = fileSRT
	}

	rec, opts, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	batch := pipeline.NewBatch(opts)
	console := sink.NewConsole(os.Stdout, cfg.Output.Color, sink.DefaultTheme)

	var failed int
	for _, path := range args {
		if err := transcribeFile(ctx, batch, cfg, console, log, path); err != nil {
			failed++
			if errors.Is(err, context.Canceled) {
				break
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// transcribeFile runs one batch job with the console and, when enabled,
// an SRT sink.
func transcribeFile(ctx context.Context, batch *pipeline.Batch, cfg *config.Config, console *sink.Console, log *slog.Logger, path string) error {
	sinks := sink.BatchFanout{console}
	var srt *sink.SRT
	if cfg.Output.SRT {
		srt = sink.NewSRT(sink.SRTPath(path))
		sinks = append(sinks, srt)
	}

	if _, err := batch.RunFile(ctx, path, sinks); err != nil {
		return err
	}
	if srt != nil {
		if err := srt.Err(); err != nil {
			log.Error("writing subtitles", "path", srt.Path(), "error", err)
			return err
		}
		log.Info("subtitles written", "path", srt.Path())
	}
	return nil
}
