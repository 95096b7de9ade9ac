// Package sink renders transcripts to the terminal, SRT files and the
// focused application.
package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/vadscribe/internal/pipeline"
)

// Theme defines the console color scheme.
type Theme struct {
	Accent lipgloss.Color
	Dim    lipgloss.Color
	Error  lipgloss.Color
}

// DefaultTheme is the default console theme.
var DefaultTheme = Theme{
	Accent: lipgloss.Color("#00ff9f"),
	Dim:    lipgloss.Color("#6e7681"),
	Error:  lipgloss.Color("#ff5f5f"),
}

type styles struct {
	index lipgloss.Style
	meta  lipgloss.Style
	err   lipgloss.Style
}

// Console writes live fragments and batch lines to a terminal. It is safe
// for concurrent use.
type Console struct {
	mu sync.Mutex
	w  io.Writer
	st styles
}

var (
	_ pipeline.LiveSink  = (*Console)(nil)
	_ pipeline.BatchSink = (*Console)(nil)
)

// NewConsole returns a Console writing to w. With color false no escape
// codes are emitted; otherwise color follows what w supports.
func NewConsole(w io.Writer, color bool, theme Theme) *Console {
	c := &Console{w: w}
	if !color {
		plain := lipgloss.NewStyle()
		c.st = styles{index: plain, meta: plain, err: plain}
		return c
	}
	r := lipgloss.NewRenderer(w)
	c.st = styles{
		index: r.NewStyle().Bold(true).Foreground(theme.Accent),
		meta:  r.NewStyle().Foreground(theme.Dim),
		err:   r.NewStyle().Bold(true).Foreground(theme.Error),
	}
	return c
}

// Deliver implements pipeline.LiveSink.
func (c *Console) Deliver(f pipeline.Fragment) {
	c.printf("%s %s %s\n",
		c.st.index.Render(fmt.Sprintf("[%d]", f.Index)),
		c.st.meta.Render(pipeline.FormatTimestamp(f.Start)),
		f.Text)
}

// Line implements pipeline.BatchSink.
func (c *Console) Line(l pipeline.Line) {
	meta := fmt.Sprintf("[%s --> %s, progress: %.0f%%, elapsed: %.1fs]",
		pipeline.FormatTimestamp(l.Start), pipeline.FormatTimestamp(l.End),
		l.Progress, l.Elapsed.Seconds())
	c.printf("%s %s\n", c.st.meta.Render(meta), l.Text)
}

// Done implements pipeline.BatchSink.
func (c *Console) Done(s pipeline.Summary) {
	c.printf("%s\n", c.st.index.Render(fmt.Sprintf(
		"%s: %d fragments from %d segments, %.1fs of audio in %.1fs",
		s.Source, s.Fragments, s.Segments, s.Audio.Seconds(), s.Elapsed.Seconds())))
}

// Fail implements pipeline.BatchSink.
func (c *Console) Fail(source string, err error) {
	c.printf("%s %s: %v\n", c.st.err.Render("error"), source, err)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, format, args...)
}
