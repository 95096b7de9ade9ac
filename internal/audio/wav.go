package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrNotRIFF is returned for input without a RIFF/WAVE header.
	ErrNotRIFF = errors.New("audio: not a RIFF/WAVE stream")
	// ErrNoDataChunk is returned when no "data" chunk can be located.
	ErrNoDataChunk = errors.New("audio: could not find data chunk")
)

const riffHeaderSize = 12

// DecodeWAVFile reads a 16-bit PCM WAV file into normalized float32 samples.
func DecodeWAVFile(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}
	samples, err := DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return samples, nil
}

// DecodeWAV locates the data chunk of a 16-bit PCM WAV image and returns its
// samples normalized to [-1, 1). The format chunk directly after the RIFF
// header is skipped by its declared size; later chunks are scanned linearly
// until a "data" tag is found. A data chunk that claims more bytes than are
// present is truncated to what is available.
func DecodeWAV(data []byte) ([]float32, error) {
	if len(data) < riffHeaderSize+8 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotRIFF
	}

	offset := riffHeaderSize
	fmtSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
	offset += 8 + fmtSize

	for offset >= 0 && offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8

		if id != "data" {
			offset += size
			continue
		}

		avail := len(data) - offset
		if size < 0 || size > avail {
			size = avail
		}
		n := size / 2
		samples := make([]float32, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[offset+2*i:]))
			samples[i] = float32(v) / 32768.0
		}
		return samples, nil
	}

	return nil, ErrNoDataChunk
}

// WriteWAV encodes samples as a mono 16-bit PCM WAV stream.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           floatToInt16(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}

// WriteWAVFile writes samples to path as a mono 16-bit PCM WAV file.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAV returns samples as an in-memory WAV image.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	var sb seekBuffer
	if err := WriteWAV(&sb, samples, sampleRate); err != nil {
		return nil, err
	}
	return sb.buf, nil
}

func floatToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		out[i] = int(max(-32768, min(32767, v)))
	}
	return out
}

// seekBuffer is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("audio: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("audio: negative seek position")
	}
	b.pos = int(abs)
	return abs, nil
}
