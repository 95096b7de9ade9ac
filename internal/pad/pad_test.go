package pad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/vadscribe/internal/audio"
	"github.com/chaz8081/vadscribe/internal/config"
	"github.com/chaz8081/vadscribe/internal/vad"
)

// ramp returns n samples whose value encodes their index.
func ramp(n int) audio.Buffer {
	b := make(audio.Buffer, n)
	for i := range b {
		b[i] = float32(i+1) / float32(n+1)
	}
	return b
}

func segmentOf(b audio.Buffer, start, n int) vad.Segment {
	samples := make([]float32, n)
	copy(samples, b[start:start+n])
	return vad.Segment{Start: start, Samples: samples}
}

func defaultPolicy() AudioPlusSilence {
	return AudioPlusSilence{
		Audio:      90 * time.Millisecond,
		Silence:    300 * time.Millisecond,
		SampleRate: 16000,
	}
}

func TestAudioPlusSilenceLength(t *testing.T) {
	history := ramp(40000)
	p := defaultPolicy()

	got := p.Pad(segmentOf(history, 20000, 1000), history)

	assert.Len(t, got.Samples, 13480)
	assert.Equal(t, 6240, p.Overhead())
	assert.Equal(t, 20000, got.Start)
	assert.Equal(t, 1000, got.Length)
	assert.Equal(t, 21000, got.End())
}

func TestAudioPlusSilenceLayout(t *testing.T) {
	history := ramp(40000)
	seg := segmentOf(history, 20000, 1000)
	got := defaultPolicy().Pad(seg, history)
	out := got.Samples

	// [audio 1440][silence 4800][segment 1000][silence 4800][audio 1440]
	assert.Equal(t, []float32(history[20000-1440:20000]), out[:1440])
	assert.Equal(t, make([]float32, 4800), out[1440:6240])
	assert.Equal(t, seg.Samples, out[6240:7240])
	assert.Equal(t, make([]float32, 4800), out[7240:12040])
	assert.Equal(t, []float32(history[21000:21000+1440]), out[12040:])
}

func TestAudioPlusSilenceSilenceOuter(t *testing.T) {
	history := ramp(40000)
	seg := segmentOf(history, 20000, 1000)
	p := defaultPolicy()
	p.Order = SilenceOuter
	out := p.Pad(seg, history).Samples

	require.Len(t, out, 13480)
	assert.Equal(t, make([]float32, 4800), out[:4800])
	assert.Equal(t, []float32(history[20000-1440:20000]), out[4800:6240])
	assert.Equal(t, seg.Samples, out[6240:7240])
	assert.Equal(t, []float32(history[21000:21000+1440]), out[7240:8680])
	assert.Equal(t, make([]float32, 4800), out[8680:])
}

func TestAudioPlusSilenceStreamStart(t *testing.T) {
	history := ramp(40000)
	seg := segmentOf(history, 0, 1000)
	out := defaultPolicy().Pad(seg, history).Samples

	require.Len(t, out, 13480)
	assert.Equal(t, make([]float32, 6240), out[:6240], "nothing precedes the stream")
	assert.Equal(t, seg.Samples, out[6240:7240])
}

func TestAudioPlusSilencePartialLead(t *testing.T) {
	history := ramp(40000)
	seg := segmentOf(history, 500, 1000)
	out := defaultPolicy().Pad(seg, history).Samples

	require.Len(t, out, 13480)
	assert.Equal(t, []float32(history[:500]), out[:500])
	assert.Equal(t, make([]float32, 940+4800), out[500:6240], "short lead is followed by zeros")
	assert.Equal(t, seg.Samples, out[6240:7240])
}

func TestAudioPlusSilencePartialLeadSilenceOuter(t *testing.T) {
	history := ramp(40000)
	seg := segmentOf(history, 500, 1000)
	p := defaultPolicy()
	p.Order = SilenceOuter
	out := p.Pad(seg, history).Samples

	require.Len(t, out, 13480)
	assert.Equal(t, make([]float32, 4800), out[:4800])
	assert.Equal(t, []float32(history[:500]), out[4800:5300])
	assert.Equal(t, make([]float32, 940), out[5300:6240])
}

func TestAudioPlusSilenceTailBeyondHistory(t *testing.T) {
	history := ramp(21500)
	seg := segmentOf(history, 20000, 1000)
	out := defaultPolicy().Pad(seg, history).Samples

	require.Len(t, out, 13480)
	assert.Equal(t, []float32(history[21000:]), out[12040:12540])
	assert.Equal(t, make([]float32, 940), out[12540:], "missing tail is zero-filled")

	// A segment ending exactly at the end of history gets an all-silent tail.
	history = ramp(21000)
	out = defaultPolicy().Pad(segmentOf(history, 20000, 1000), history).Samples
	assert.Equal(t, make([]float32, 6240), out[7240:])
}

func TestAudioPlusSilenceNilHistory(t *testing.T) {
	seg := segmentOf(ramp(2000), 1000, 500)
	out := defaultPolicy().Pad(seg, nil).Samples

	require.Len(t, out, 500+2*6240)
	assert.Equal(t, make([]float32, 6240), out[:6240])
	assert.Equal(t, seg.Samples, out[6240:6740])
}

func TestSymmetricSilence(t *testing.T) {
	p := SymmetricSilence{Duration: 500 * time.Millisecond, SampleRate: 16000}
	seg := segmentOf(ramp(4000), 100, 1000)

	got := p.Pad(seg, ramp(4000))

	require.Len(t, got.Samples, 1000+2*8000)
	assert.Equal(t, make([]float32, 8000), got.Samples[:8000])
	assert.Equal(t, seg.Samples, got.Samples[8000:9000])
	assert.Equal(t, make([]float32, 8000), got.Samples[9000:])
	assert.Equal(t, 100, got.Start)
	assert.Equal(t, 1000, got.Length)
}

func TestPadDoesNotAliasSegment(t *testing.T) {
	seg := segmentOf(ramp(4000), 100, 10)
	out := defaultPolicy().Pad(seg, ramp(4000)).Samples
	out[6240] = 42
	assert.NotEqual(t, float32(42), seg.Samples[0])
}

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PaddingConfig
		want    Policy
		wantErr bool
	}{
		{
			name: "audio silence",
			cfg:  config.Default().Padding,
			want: AudioPlusSilence{Audio: 90 * time.Millisecond, Silence: 300 * time.Millisecond, SampleRate: 16000},
		},
		{
			name: "silence outer",
			cfg:  config.PaddingConfig{Policy: "audio_silence", Audio: time.Millisecond, Order: "silence_outer"},
			want: AudioPlusSilence{Audio: time.Millisecond, SampleRate: 16000, Order: SilenceOuter},
		},
		{
			name: "silence",
			cfg:  config.PaddingConfig{Policy: "silence", Silence: 500 * time.Millisecond},
			want: SymmetricSilence{Duration: 500 * time.Millisecond, SampleRate: 16000},
		},
		{name: "unknown policy", cfg: config.PaddingConfig{Policy: "reverb"}, wantErr: true},
		{name: "unknown order", cfg: config.PaddingConfig{Policy: "audio_silence", Order: "middle"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPolicy(tt.cfg, 16000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
