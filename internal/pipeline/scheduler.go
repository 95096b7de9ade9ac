// Package pipeline wires segmentation, padding and concurrent recognition
// into live sessions and batch file jobs.
package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/chaz8081/vadscribe/internal/pad"
	"github.com/chaz8081/vadscribe/internal/transcribe"
)

// maxAutoWorkers caps the automatic pool size. Inference is memory heavy.
const maxAutoWorkers = 4

// Result is the outcome of one recognition task. Text is trimmed and never
// blank.
type Result struct {
	Index   int
	Segment pad.Segment
	Text    string
}

// Scheduler runs recognition tasks concurrently on a bounded pool. Results
// are handed to the callback as each task completes, in no particular
// order.
type Scheduler struct {
	rec      transcribe.Recognizer
	rate     int
	log      *slog.Logger
	onResult func(Result)
	sem      chan struct{}
	parent   context.Context

	// deliverMu serializes onResult and orders it against Reset, so no
	// stale result is delivered once Reset has returned.
	deliverMu sync.Mutex

	mu     sync.Mutex
	next   int
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a Scheduler with the given pool size. Cancelling
// ctx cancels every outstanding task. onResult is called from task
// goroutines one at a time, without holding the lock Submit needs; it may
// Submit but must not Reset or Close the Scheduler.
func NewScheduler(ctx context.Context, rec transcribe.Recognizer, workers, sampleRate int, log *slog.Logger, onResult func(Result)) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		rec:      rec,
		rate:     sampleRate,
		log:      log,
		onResult: onResult,
		sem:      make(chan struct{}, Workers(workers, rec)),
		parent:   ctx,
		ctx:      taskCtx,
		cancel:   cancel,
	}
}

// Workers resolves a configured pool size. Zero or less means one worker
// per CPU up to a small fixed cap; the recognizer's own limit always wins.
func Workers(configured int, rec transcribe.Recognizer) int {
	n := configured
	if n <= 0 {
		n = min(max(runtime.NumCPU(), 1), maxAutoWorkers)
	}
	if limit := transcribe.MaxConcurrency(rec); limit > 0 && n > limit {
		n = limit
	}
	return n
}

// Size returns the number of tasks that may decode at once.
func (s *Scheduler) Size() int {
	return cap(s.sem)
}

// Submit assigns the next sequence index to seg and starts recognizing it
// in the background. The index is returned without waiting.
func (s *Scheduler) Submit(seg pad.Segment) int {
	s.mu.Lock()
	idx := s.next
	s.next++
	gen, ctx := s.gen, s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, gen, idx, seg)
	return idx
}

func (s *Scheduler) run(ctx context.Context, gen uint64, idx int, seg pad.Segment) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	if ctx.Err() != nil {
		<-s.sem
		return
	}
	text, err := transcribe.Recognize(ctx, s.rec, seg.Samples, s.rate)
	<-s.sem

	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("segment recognition failed", "index", idx, "start", seg.Start, "error", err)
		}
		return
	}
	if strings.TrimSpace(text) == "" {
		s.log.Debug("blank segment dropped", "index", idx)
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale || s.onResult == nil {
		return
	}
	s.onResult(Result{Index: idx, Segment: seg, Text: text})
}

// Reset starts a new session: indices restart at zero and results of
// tasks submitted earlier are discarded. Outstanding tasks are cancelled.
// Reset waits for a delivery already in progress.
func (s *Scheduler) Reset() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.gen++
	s.next = 0
}

// Wait blocks until every submitted task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding tasks and waits for them to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.cancel()
	s.gen++
	s.mu.Unlock()
	s.wg.Wait()
}
