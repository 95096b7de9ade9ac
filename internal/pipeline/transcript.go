package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Fragment is one live transcript event. Fragments may arrive out of Index
// order.
type Fragment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Line is one ordered batch transcript entry.
type Line struct {
	Index    int // position in the delivered transcript
	Start    time.Duration
	End      time.Duration
	Progress float64 // percent of segments covered so far
	Elapsed  time.Duration
	Text     string
}

// Summary describes a finished batch job.
type Summary struct {
	Source    string
	Segments  int // segments detected
	Fragments int // lines delivered
	Audio     time.Duration
	Elapsed   time.Duration
}

// LiveSink receives live fragments as they complete. Deliver may be called
// concurrently.
type LiveSink interface {
	Deliver(f Fragment)
}

// BatchSink receives the ordered lines of one file job followed by Done,
// or Fail if the job could not run.
type BatchSink interface {
	Line(l Line)
	Done(s Summary)
	Fail(source string, err error)
}

// terminators end a sentence without needing a full stop appended.
const terminators = ".!?。！？"

// NormalizePunctuation appends 。 to text that does not already end in
// sentence punctuation. Blank text stays blank.
func NormalizePunctuation(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	for _, r := range terminators {
		if strings.HasSuffix(text, string(r)) {
			return text
		}
	}
	return text + "。"
}

// FormatTimestamp renders d as HH:MM:SS,mmm. Negative durations render as
// zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}
