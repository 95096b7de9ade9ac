package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/media"
	"github.com/chaz8081/vadscribe/internal/vad"
)

// Batch transcribes whole files. Each Run owns its own segmenter and
// scheduler, so jobs may run concurrently.
type Batch struct {
	opts Options
}

// NewBatch returns a Batch runner.
func NewBatch(opts Options) *Batch {
	opts.fill()
	return &Batch{opts: opts}
}

// RunFile loads path, converting it with ffmpeg when it is not WAV, and
// transcribes it. Load failures are reported to the sink and returned.
func (b *Batch) RunFile(ctx context.Context, path string, sink BatchSink) (Summary, error) {
	samples, err := media.Load(ctx, path, b.opts.SampleRate)
	if err != nil {
		err = fmt.Errorf("pipeline: load %s: %w", filepath.Base(path), err)
		sink.Fail(path, err)
		return Summary{}, err
	}
	return b.Run(ctx, path, samples, sink)
}

// Run transcribes a decoded buffer. Lines reach the sink sorted by segment
// start once every recognition has finished.
func (b *Batch) Run(ctx context.Context, source string, samples []float32, sink BatchSink) (Summary, error) {
	started := time.Now()
	rate := b.opts.SampleRate
	session := uuid.NewString()
	log := b.opts.Logger.With("session", session, "source", source)

	var (
		mu      sync.Mutex
		results []Result
	)
	sched := NewScheduler(ctx, b.opts.Recognizer, b.opts.Workers, rate, log, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	defer sched.Close()

	seg := vad.NewSegmenter(b.opts.NewDetector(), b.opts.VAD)
	history := audio.Buffer(samples)
	var starts []int

	submit := func() {
		for {
			s, ok := seg.Pop()
			if !ok {
				return
			}
			padded := b.opts.Padding.Pad(s, history)
			idx := sched.Submit(padded)
			starts = append(starts, s.Start)
			dump(log, b.opts.DumpDir, session, idx, padded, rate)
		}
	}

	src := audio.NewBufferSource(samples, b.opts.ChunkSize)
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = fmt.Errorf("pipeline: %s: %w", filepath.Base(source), err)
			sink.Fail(source, err)
			return Summary{}, err
		}
		seg.Accept(chunk)
		submit()
	}
	seg.Flush()
	submit()

	log.Info("segments submitted", "segments", len(starts), "workers", sched.Size())
	sched.Wait()

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("pipeline: %s: %w", filepath.Base(source), err)
		sink.Fail(source, err)
		return Summary{}, err
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Segment.Start, b.Segment.Start)
	})
	slices.Sort(starts)

	for i, r := range results {
		// Progress counts every segment up to this one, blank or not.
		covered := sort.SearchInts(starts, r.Segment.Start+1)
		sink.Line(Line{
			Index:    i,
			Start:    audio.DurationOf(r.Segment.Start, rate),
			End:      audio.DurationOf(r.Segment.End(), rate),
			Progress: 100 * float64(covered) / float64(len(starts)),
			Elapsed:  time.Since(started),
			Text:     NormalizePunctuation(r.Text),
		})
	}

	summary := Summary{
		Source:    source,
		Segments:  len(starts),
		Fragments: len(results),
		Audio:     audio.DurationOf(len(samples), rate),
		Elapsed:   time.Since(started),
	}
	sink.Done(summary)
	log.Info("file transcribed", "fragments", summary.Fragments, "elapsed", summary.Elapsed)
	return summary, nil
}
