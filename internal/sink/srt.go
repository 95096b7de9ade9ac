package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chaz8081/vadscribe/internal/pipeline"
)

// SRT collects batch lines and writes them as numbered SubRip cues when
// the job is done. Nothing is written for a failed job.
type SRT struct {
	path string

	mu    sync.Mutex
	lines []pipeline.Line
	err   error
}

var _ pipeline.BatchSink = (*SRT)(nil)

// NewSRT returns an SRT sink writing to path.
func NewSRT(path string) *SRT {
	return &SRT{path: path}
}

// SRTPath returns the subtitle path next to a media file.
func SRTPath(source string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".srt"
}

// Path returns the output file path.
func (s *SRT) Path() string { return s.path }

// Err returns the error from writing the file, if any.
func (s *SRT) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Line implements pipeline.BatchSink.
func (s *SRT) Line(l pipeline.Line) {
	s.mu.Lock()
	s.lines = append(s.lines, l)
	s.mu.Unlock()
}

// Done implements pipeline.BatchSink.
func (s *SRT) Done(pipeline.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = s.write()
}

// Fail implements pipeline.BatchSink.
func (s *SRT) Fail(string, error) {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}

func (s *SRT) write() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", s.path, err)
	}
	w := bufio.NewWriter(f)
	for i, l := range s.lines {
		fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", i+1,
			pipeline.FormatTimestamp(l.Start), pipeline.FormatTimestamp(l.End), l.Text)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sink: write %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sink: close %s: %w", s.path, err)
	}
	return nil
}
