package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/hotkey"
	"github.com/chaz8081/vadscribe/internal/pipeline"
	"github.com/chaz8081/vadscribe/internal/sink"
)

var (
	liveSource string
	liveInject bool
	liveHotkey bool
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Transcribe live audio",
	Long: `Transcribe the microphone or, on Windows, system audio.

Fragments are printed as soon as each utterance is recognized, labeled with
its sequence number, so later utterances may appear before earlier ones.

With --hotkey the configured key combination starts and stops sessions;
otherwise a session runs until interrupted.

Examples:
  vadscribe live
  vadscribe live --source loopback
  vadscribe live --hotkey --inject`,
	RunE: runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveSource, "source", "", "capture source: mic or loopback (default from config)")
	liveCmd.Flags().BoolVar(&liveInject, "inject", false, "type fragments into the focused application")
	liveCmd.Flags().BoolVar(&liveHotkey, "hotkey", false, "start and stop sessions with the configured hotkey")
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if liveSource != "" {
		cfg.Audio.Source = liveSource
	}
	if cmd.Flags().Changed("inject") {
		cfg.Output.Inject = liveInject
	}
	if cmd.Flags().Changed("hotkey") {
		cfg.Hotkey.Enabled = liveHotkey
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	printBanner(cfg)

	rec, opts, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}

	sinks := sink.LiveFanout{sink.NewConsole(os.Stdout, cfg.Output.Color, sink.DefaultTheme)}
	if cfg.Output.Inject {
		sinks = append(sinks, sink.NewInjector(cfg.Output.InjectMethod, log))
		log.Info("text injector ready", "method", cfg.Output.InjectMethod)
	}

	open := func() (pipeline.Capture, error) {
		c, err := audio.OpenCapture(cfg.Audio.Source, cfg.Audio.SampleRate, cfg.Audio.ChunkSize)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	live := pipeline.NewLive(open, sinks, opts)
	shutdown := func() {
		if err := live.Close(); err != nil {
			log.Warn("closing session", "error", err)
		}
		_ = rec.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Hotkey.Enabled {
		if err := live.Start(ctx); err != nil {
			_ = rec.Close()
			if errors.Is(err, audio.ErrUnsupportedSource) {
				return fmt.Errorf("%w\n\nSystem audio capture needs Windows (WASAPI loopback)", err)
			}
			return err
		}
		log.Info("listening, Ctrl+C to stop", "source", cfg.Audio.Source)
		<-ctx.Done()
		log.Info("shutting down")
		shutdown()
		return nil
	}

	return runHotkey(ctx, cfg, live, shutdown)
}

// runHotkey maps hotkey actions onto the session controller until ctx is
// done.
func runHotkey(ctx context.Context, cfg *config.Config, live *pipeline.Live, shutdown func()) error {
	listener, err := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	if err != nil {
		shutdown()
		return err
	}
	go listener.Run(ctx)

	combo := strings.Join(cfg.Hotkey.Keys, "+")
	fmt.Printf("Ready! Press %s to record (%s mode). Ctrl+C to quit.\n", combo, cfg.Hotkey.Mode)

	for {
		select {
		case action, ok := <-listener.Actions():
			if !ok {
				shutdown()
				return nil
			}
			switch action {
			case hotkey.Start:
				if err := live.Start(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "failed to start recording: %v\n", err)
					listener.Sync(false)
				}
			case hotkey.Stop:
				if err := live.Stop(); err != nil && !errors.Is(err, pipeline.ErrNoSession) {
					fmt.Fprintf(os.Stderr, "failed to stop recording: %v\n", err)
				}
			}

		case <-ctx.Done():
			listener.Stop()
			shutdown()
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== vadscribe ===")
	fmt.Printf("  Backend: %s\n", cfg.Transcribe.Backend)
	if cfg.Transcribe.Backend == "whisper" {
		fmt.Printf("  Model:   %s\n", cfg.Transcribe.ModelPath)
	} else {
		fmt.Printf("  Model:   %s\n", cfg.Transcribe.OpenAI.Model)
	}
	fmt.Printf("  Audio:   %s, %dHz\n", cfg.Audio.Source, cfg.Audio.SampleRate)
	fmt.Printf("  Padding: %s\n", cfg.Padding.Policy)
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkey:  %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	}
	if cfg.Output.Inject {
		fmt.Printf("  Inject:  %s\n", cfg.Output.InjectMethod)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
