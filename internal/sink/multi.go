package sink

import "github.com/chaz8081/vadscribe/internal/pipeline"

// LiveFanout delivers every fragment to each sink in turn.
type LiveFanout []pipeline.LiveSink

// Deliver implements pipeline.LiveSink.
func (m LiveFanout) Deliver(f pipeline.Fragment) {
	for _, s := range m {
		s.Deliver(f)
	}
}

// BatchFanout forwards batch events to each sink in turn.
type BatchFanout []pipeline.BatchSink

// Line implements pipeline.BatchSink.
func (m BatchFanout) Line(l pipeline.Line) {
	for _, s := range m {
		s.Line(l)
	}
}

// Done implements pipeline.BatchSink.
func (m BatchFanout) Done(sum pipeline.Summary) {
	for _, s := range m {
		s.Done(sum)
	}
}

// Fail implements pipeline.BatchSink.
func (m BatchFanout) Fail(source string, err error) {
	for _, s := range m {
		s.Fail(source, err)
	}
}
