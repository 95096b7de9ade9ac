package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/media"
	"github.com/chaz8081/vadscribe/internal/pipeline"
	"github.com/chaz8081/vadscribe/internal/sink"
)

var (
	watchSettle   time.Duration
	watchExisting bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Transcribe files as they appear in a directory",
	Long: `Watch a directory and transcribe every new audio or video file into a
.srt file next to it. A file is picked up once it has not been written to
for --settle. Files that already have a subtitle file are skipped.

Examples:
  vadscribe watch ~/Recordings
  vadscribe watch --existing --settle 5s /srv/uploads`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period before a written file is transcribed")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also transcribe files already in the directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	cfg.Output.SRT = true

	rec, opts, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = rec.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := &dirWatcher{
		batch:   pipeline.NewBatch(opts),
		cfg:     cfg,
		console: sink.NewConsole(os.Stdout, cfg.Output.Color, sink.DefaultTheme),
		log:     log.With("dir", dir),
		settle:  watchSettle,
		timers:  map[string]*time.Timer{},
		jobs:    make(chan string, 64),
	}

	return w.run(ctx, watcher, dir, watchExisting)
}

// dirWatcher debounces file events and feeds settled files to a single
// job runner. Recognition concurrency lives inside each job.
type dirWatcher struct {
	batch   *pipeline.Batch
	cfg     *config.Config
	console *sink.Console
	log     *slog.Logger
	settle  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	jobs   chan string
}

// run feeds watcher events to the job runner until ctx is done or the
// watcher closes. With existing set, files already in dir are queued first.
func (w *dirWatcher) run(ctx context.Context, watcher *fsnotify.Watcher, dir string, existing bool) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.work(ctx)
	}()
	defer w.shutdown(&wg)

	if existing {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("watch: read %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				w.schedule(filepath.Join(dir, e.Name()))
			}
		}
	}

	w.log.Info("watching for new files")
	w.loop(ctx, watcher)
	return nil
}

// shutdown cancels pending debounces, closes the job queue and waits for
// the runner to finish the job in hand.
func (w *dirWatcher) shutdown(wg *sync.WaitGroup) {
	w.stopTimers()
	close(w.jobs)
	wg.Wait()
}

func (w *dirWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *dirWatcher) schedule(path string) {
	if !media.IsSupported(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() { w.enqueue(path) })
}

func (w *dirWatcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.timers, path)
	if w.closed {
		return
	}
	select {
	case w.jobs <- path:
	default:
		w.log.Warn("job queue full, skipping", "path", path)
	}
}

func (w *dirWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *dirWatcher) work(ctx context.Context) {
	for path := range w.jobs {
		if ctx.Err() != nil {
			continue
		}
		if upToDate(path) {
			w.log.Debug("subtitles up to date, skipping", "path", path)
			continue
		}
		if err := transcribeFile(ctx, w.batch, w.cfg, w.console, w.log, path); err != nil {
			w.log.Error("transcribing file", "path", path, "error", err)
		}
	}
}

// upToDate reports whether path already has a subtitle file at least as
// new as itself.
func upToDate(path string) bool {
	src, err := os.Stat(path)
	if err != nil {
		return false
	}
	srt, err := os.Stat(sink.SRTPath(path))
	if err != nil {
		return false
	}
	return !srt.ModTime().Before(src.ModTime())
}
