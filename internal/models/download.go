// Package models downloads whisper ggml models.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/chaz8081/vadscribe/internal/config"
)

// baseURL hosts the ggml model files. Tests point it at a local server.
var baseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Model describes one downloadable whisper model.
type Model struct {
	Name   string
	File   string
	SizeMB int
}

// Catalog lists the models that can be downloaded, keyed by name.
var Catalog = map[string]Model{
	"tiny.en":  {Name: "tiny.en", File: "ggml-tiny.en.bin", SizeMB: 75},
	"tiny":     {Name: "tiny", File: "ggml-tiny.bin", SizeMB: 75},
	"base.en":  {Name: "base.en", File: "ggml-base.en.bin", SizeMB: 142},
	"base":     {Name: "base", File: "ggml-base.bin", SizeMB: 142},
	"small.en": {Name: "small.en", File: "ggml-small.en.bin", SizeMB: 466},
	"small":    {Name: "small", File: "ggml-small.bin", SizeMB: 466},
	"medium":   {Name: "medium", File: "ggml-medium.bin", SizeMB: 1500},
}

// Names returns the catalog names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for n := range Catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Download fetches the named model into dir, or DefaultModelsDir when dir
// is empty, and returns its path. An existing non-empty file is kept.
// Progress is written to out.
func Download(ctx context.Context, name, dir string, out io.Writer) (string, error) {
	m, ok := Catalog[name]
	if !ok {
		return "", fmt.Errorf("models: unknown model %q", name)
	}
	if dir == "" {
		dir = config.DefaultModelsDir()
	}
	if out == nil {
		out = io.Discard
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}

	destPath := filepath.Join(dir, m.File)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Whisper model already exists: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	url := baseURL + m.File
	fmt.Fprintf(out, "  Downloading %s from %s\n", m.Name, url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("models: building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("models: downloading %s: %w", m.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models: download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}

	pw := &progressWriter{writer: f, out: out, total: resp.ContentLength, label: m.File}
	written, err := io.Copy(pw, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		err = errors.New("short read")
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing model file: %w", err)
	}
	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
