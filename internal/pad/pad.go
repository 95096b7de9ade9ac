// Package pad affixes context to speech segments so the recognizer does not
// clip the first or last phoneme of an utterance.
package pad

import (
	"fmt"
	"time"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/vad"
)

// History is the stream a segment was cut from. Lookups outside what has
// been recorded copy nothing.
type History interface {
	Len() int
	CopyAt(dst []float32, off int) int
}

// Segment is a padded utterance ready for recognition. Start and Length
// describe the original, unpadded span in the stream.
type Segment struct {
	Start   int
	Length  int
	Samples []float32
}

// End returns the stream index one past the original span.
func (s Segment) End() int {
	return s.Start + s.Length
}

// Policy pads a raw segment using the stream history around it.
type Policy interface {
	Pad(seg vad.Segment, history History) Segment
	// Overhead is the number of samples added to each side.
	Overhead() int
}

// SymmetricSilence surrounds a segment with Duration of silence on both
// sides.
type SymmetricSilence struct {
	Duration   time.Duration
	SampleRate int
}

// Overhead implements Policy.
func (p SymmetricSilence) Overhead() int {
	return audio.SamplesIn(p.Duration, p.SampleRate)
}

// Pad implements Policy. The history is not consulted.
func (p SymmetricSilence) Pad(seg vad.Segment, _ History) Segment {
	n := p.Overhead()
	out := make([]float32, len(seg.Samples)+2*n)
	copy(out[n:], seg.Samples)
	return Segment{Start: seg.Start, Length: len(seg.Samples), Samples: out}
}

// Order selects which padding region sits at the outer edge.
type Order int

const (
	// AudioOuter lays out [audio][silence][segment][silence][audio].
	AudioOuter Order = iota
	// SilenceOuter lays out [silence][audio][segment][audio][silence].
	SilenceOuter
)

// AudioPlusSilence pads each side with up to Audio of real neighbouring
// samples from the history plus Silence of zeros. Missing history is
// zero-filled so the output length never depends on the history.
type AudioPlusSilence struct {
	Audio      time.Duration
	Silence    time.Duration
	SampleRate int
	Order      Order
}

// Overhead implements Policy.
func (p AudioPlusSilence) Overhead() int {
	return audio.SamplesIn(p.Audio, p.SampleRate) + audio.SamplesIn(p.Silence, p.SampleRate)
}

// Pad implements Policy.
func (p AudioPlusSilence) Pad(seg vad.Segment, history History) Segment {
	a := audio.SamplesIn(p.Audio, p.SampleRate)
	s := audio.SamplesIn(p.Silence, p.SampleRate)
	n := len(seg.Samples)
	out := make([]float32, n+2*(a+s))

	headAudio, tailAudio := 0, a+s+n+s
	if p.Order == SilenceOuter {
		headAudio, tailAudio = s, a+s+n
	}
	body := a + s

	// Short preceding audio fills its region from the front; the rest stays
	// zero.
	if lead := min(a, max(seg.Start, 0)); lead > 0 && history != nil {
		history.CopyAt(out[headAudio:headAudio+lead], seg.Start-lead)
	}

	copy(out[body:body+n], seg.Samples)

	if history != nil {
		if trail := min(a, history.Len()-seg.End()); trail > 0 {
			history.CopyAt(out[tailAudio:tailAudio+trail], seg.End())
		}
	}

	return Segment{Start: seg.Start, Length: n, Samples: out}
}

// NewPolicy builds the policy named by cfg.
func NewPolicy(cfg config.PaddingConfig, sampleRate int) (Policy, error) {
	switch cfg.Policy {
	case "silence":
		return SymmetricSilence{Duration: cfg.Silence, SampleRate: sampleRate}, nil
	case "audio_silence", "":
		order := AudioOuter
		switch cfg.Order {
		case "silence_outer":
			order = SilenceOuter
		case "audio_outer", "":
		default:
			return nil, fmt.Errorf("pad: unknown order %q", cfg.Order)
		}
		return AudioPlusSilence{
			Audio:      cfg.Audio,
			Silence:    cfg.AudioSilence,
			SampleRate: sampleRate,
			Order:      order,
		}, nil
	default:
		return nil, fmt.Errorf("pad: unknown policy %q", cfg.Policy)
	}
}
