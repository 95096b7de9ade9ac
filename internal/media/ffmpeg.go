// Package media turns audio and video files into 16 kHz mono samples.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chaz8081/vadscribe/internal/audio"
)

// supported lists the extensions Load accepts. Anything but .wav goes
// through ffmpeg.
var supported = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".webm": true,
}

// IsSupported reports whether path has an extension Load can handle.
func IsSupported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// Convert uses ffmpeg to transcode input to mono 16-bit PCM WAV at the
// given rate. Returns the path to the converted file inside tmpDir.
func Convert(ctx context.Context, input, tmpDir string, sampleRate int) (string, error) {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(tmpDir, base+"_"+strconv.Itoa(sampleRate/1000)+"k.wav")

	// ffmpeg -y -i input -vn -ac 1 -ar 16000 -c:a pcm_s16le -f wav output
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", input,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("media: ffmpeg %s: %w: %s", filepath.Base(input), err, msg)
		}
		return "", fmt.Errorf("media: ffmpeg %s: %w", filepath.Base(input), err)
	}
	return out, nil
}

// Load returns the samples of path. WAV files are decoded directly and are
// expected to already be 16-bit mono at sampleRate; other formats are
// converted with ffmpeg first.
func Load(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return audio.DecodeWAVFile(path)
	}
	if !IsSupported(path) {
		return nil, fmt.Errorf("media: unsupported file type %q", filepath.Ext(path))
	}

	tmpDir, err := os.MkdirTemp("", "vadscribe-")
	if err != nil {
		return nil, fmt.Errorf("media: create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	wavPath, err := Convert(ctx, path, tmpDir, sampleRate)
	if err != nil {
		return nil, err
	}
	return audio.DecodeWAVFile(wavPath)
}
