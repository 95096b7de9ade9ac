package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Capture source kinds accepted by OpenCapture.
const (
	SourceMic      = "mic"
	SourceLoopback = "loopback"
)

// ErrUnsupportedSource is returned when the requested capture kind is not
// available on this platform.
var ErrUnsupportedSource = errors.New("audio: capture source not supported on this platform")

// captureQueueDepth is the number of chunks buffered between the device
// callback and the consumer before chunks are dropped.
const captureQueueDepth = 256

// Capture streams mono float32 chunks from a capture device. It implements
// Source. Call Close when done.
type Capture struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	chunkSize int

	chunks  chan capturedChunk
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64

	mu      sync.Mutex
	pending []float32
	gap     int // chunks dropped since the last one queued
}

// capturedChunk is a queued chunk preceded by gap dropped chunks.
type capturedChunk struct {
	samples []float32
	gap     int
}

// OpenCapture opens and starts a capture device of the given kind at the
// given sample rate. Chunks of chunkSize samples are delivered by Next.
// On error nothing is left open.
func OpenCapture(kind string, sampleRate, chunkSize int) (*Capture, error) {
	deviceType, backends, err := captureStrategy(kind)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 512
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, nil)
	if err != nil {
		if kind == SourceLoopback {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	c := newCapture(chunkSize)
	c.ctx = ctx

	deviceCfg := malgo.DefaultDeviceConfig(deviceType)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = uint32(sampleRate)

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: c.onData})
	if err != nil {
		c.releaseContext()
		return nil, fmt.Errorf("initializing %s device: %w", kind, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		c.releaseContext()
		return nil, fmt.Errorf("starting %s device: %w", kind, err)
	}
	c.device = device

	return c, nil
}

// captureStrategy picks the device type and backend list for a source
// kind. Loopback capture is only exposed by the WASAPI backend.
func captureStrategy(kind string) (malgo.DeviceType, []malgo.Backend, error) {
	switch kind {
	case SourceMic, "":
		return malgo.Capture, nil, nil
	case SourceLoopback:
		if runtime.GOOS != "windows" {
			return 0, nil, ErrUnsupportedSource
		}
		return malgo.Loopback, []malgo.Backend{malgo.BackendWasapi}, nil
	default:
		return 0, nil, fmt.Errorf("audio: unknown capture source %q", kind)
	}
}

func newCapture(chunkSize int) *Capture {
	return &Capture{
		chunkSize: chunkSize,
		chunks:    make(chan capturedChunk, captureQueueDepth),
		done:      make(chan struct{}),
	}
}

// Next blocks until the next chunk is captured, the capture is closed
// (io.EOF) or ctx is done. Chunks dropped on overrun come back as silence
// ahead of the next delivered chunk, so stream positions stay aligned with
// the device clock.
func (c *Capture) Next(ctx context.Context) ([]float32, error) {
	select {
	case chunk := <-c.chunks:
		if chunk.gap == 0 {
			return chunk.samples, nil
		}
		out := make([]float32, chunk.gap*c.chunkSize+len(chunk.samples))
		copy(out[chunk.gap*c.chunkSize:], chunk.samples)
		return out, nil
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dropped reports how many chunks were discarded because the consumer fell
// behind.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Close stops the device and releases all audio resources. It is safe to
// call more than once.
func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.device != nil {
			c.device.Uninit()
			c.device = nil
		}
		err = c.releaseContext()
	})
	return err
}

func (c *Capture) releaseContext() error {
	if c.ctx == nil {
		return nil
	}
	ctx := c.ctx
	c.ctx = nil
	if err := ctx.Uninit(); err != nil {
		ctx.Free()
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	ctx.Free()
	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured mono frames as little-endian float32 bytes.
func (c *Capture) onData(_, pSample []byte, frameCount uint32) {
	samples := bytesToFloat32(pSample, frameCount)

	c.mu.Lock()
	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.chunkSize {
		chunk := make([]float32, c.chunkSize)
		copy(chunk, c.pending)
		c.pending = c.pending[c.chunkSize:]
		select {
		case c.chunks <- capturedChunk{samples: chunk, gap: c.gap}:
			c.gap = 0
		default:
			c.gap++
			c.dropped.Add(1)
		}
	}
	if len(c.pending) == 0 {
		c.pending = nil
	}
	c.mu.Unlock()
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
