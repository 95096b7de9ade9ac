// Package vad splits a continuous sample stream into speech segments.
//
// A Detector scores fixed-size windows; the Segmenter applies onset and
// hangover hysteresis to those scores and queues completed utterances.
package vad

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Detector scores one analysis window with a speech probability in [0, 1].
// Implementations may keep state across windows and must clear it on Reset.
type Detector interface {
	Probability(window []float32) float32
	Reset()
}

// EnergyDetector maps window RMS to a probability. A window whose RMS equals
// Reference scores 0.5; twice Reference or more scores 1.
type EnergyDetector struct {
	Reference float64

	scratch []float64
}

// NewEnergyDetector returns an EnergyDetector with the given reference RMS.
func NewEnergyDetector(reference float64) *EnergyDetector {
	return &EnergyDetector{Reference: reference}
}

// Probability implements Detector.
func (d *EnergyDetector) Probability(window []float32) float32 {
	if len(window) == 0 || d.Reference <= 0 {
		return 0
	}
	if cap(d.scratch) < len(window) {
		d.scratch = make([]float64, len(window))
	}
	x := d.scratch[:len(window)]
	for i, s := range window {
		x[i] = float64(s)
	}
	rms := math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	return float32(math.Min(1, rms/(2*d.Reference)))
}

// Reset implements Detector. The energy detector is stateless.
func (d *EnergyDetector) Reset() {}
