package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/vad"
)

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("pipeline: session already active")
	// ErrNoSession is returned by Stop when no session is running.
	ErrNoSession = errors.New("pipeline: no active session")
)

// Capture is a live sample source that holds device resources.
type Capture interface {
	audio.Source
	Close() error
}

// Opener acquires a capture source for a new session.
type Opener func() (Capture, error)

// Live controls recording sessions over a capture source. Start and Stop
// may be called from any goroutine; the segmenter is only ever touched by
// the capture loop, or by Stop once the loop has exited.
type Live struct {
	open    Opener
	opts    Options
	sink    LiveSink
	seg     *vad.Segmenter
	history *audio.History
	sched   *Scheduler

	mu      sync.Mutex
	active  bool
	cancel  context.CancelFunc
	done    chan struct{}
	src     Capture
	log     *slog.Logger
	session string
}

// NewLive returns an idle session controller.
func NewLive(open Opener, sink LiveSink, opts Options) *Live {
	opts.fill()
	l := &Live{
		open:    open,
		opts:    opts,
		sink:    sink,
		seg:     vad.NewSegmenter(opts.NewDetector(), opts.VAD),
		history: audio.NewHistory(),
		log:     opts.Logger,
	}
	// Recognitions outlive the session that submitted them, so the pool is
	// not tied to any Start context.
	l.sched = NewScheduler(context.Background(), opts.Recognizer, opts.Workers, opts.SampleRate, opts.Logger, l.deliver)
	return l
}

// Start opens the capture source and begins a new session. If the source
// cannot be opened nothing is left running and the previous session's
// state is untouched.
func (l *Live) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active {
		return ErrSessionActive
	}

	src, err := l.open()
	if err != nil {
		return fmt.Errorf("pipeline: open source: %w", err)
	}

	// The previous loop has been joined by Stop, so resetting is safe.
	l.seg.Reset()
	l.history.Reset()
	l.sched.Reset()

	l.session = uuid.NewString()
	l.log = l.opts.Logger.With("session", l.session)

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.src = src
	l.active = true

	go l.loop(loopCtx, src, l.done, l.log)

	l.log.Info("session started", "workers", l.sched.Size())
	return nil
}

// Stop ends the session: the capture loop is cancelled and joined, the
// source released, and any open utterance flushed for recognition.
// Outstanding recognitions keep running and still reach the sink.
func (l *Live) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return ErrNoSession
	}
	l.cancel()
	<-l.done

	err := l.src.Close()
	if err != nil {
		err = fmt.Errorf("pipeline: close source: %w", err)
	}

	l.seg.Flush()
	l.drain(l.log)

	if d, ok := l.src.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
		l.log.Warn("capture fell behind", "dropped_chunks", d.Dropped())
	}
	l.log.Info("session stopped", "samples", l.history.Len())

	l.active = false
	l.src = nil
	l.cancel = nil
	return err
}

// Toggle stops a running session or starts a new one.
func (l *Live) Toggle(ctx context.Context) error {
	if l.Active() {
		return l.Stop()
	}
	return l.Start(ctx)
}

// Active reports whether a session is running.
func (l *Live) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Close stops any running session and waits for outstanding recognitions.
func (l *Live) Close() error {
	var err error
	if l.Active() {
		err = l.Stop()
	}
	l.sched.Wait()
	l.sched.Close()
	return err
}

func (l *Live) loop(ctx context.Context, src Capture, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	for {
		chunk, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Error("capture failed", "error", err)
			}
			return
		}
		if len(chunk) == 0 {
			continue
		}
		l.history.Append(chunk)
		l.seg.Accept(chunk)
		l.drain(log)
	}
}

// drain pads and submits every ready segment. Only the segmenter's owner
// may call it.
func (l *Live) drain(log *slog.Logger) {
	for {
		seg, ok := l.seg.Pop()
		if !ok {
			return
		}
		padded := l.opts.Padding.Pad(seg, l.history)
		idx := l.sched.Submit(padded)
		log.Debug("segment submitted", "index", idx, "start", seg.Start, "samples", len(seg.Samples))
		dump(log, l.opts.DumpDir, l.session, idx, padded, l.opts.SampleRate)
	}
}

func (l *Live) deliver(r Result) {
	if l.sink == nil {
		return
	}
	rate := l.opts.SampleRate
	l.sink.Deliver(Fragment{
		Index: r.Index,
		Start: audio.DurationOf(r.Segment.Start, rate),
		End:   audio.DurationOf(r.Segment.End(), rate),
		Text:  r.Text,
	})
}
