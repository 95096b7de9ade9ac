package audio

import "time"

// SampleRate is the rate every pipeline stage operates at.
const SampleRate = 16000

// SamplesIn returns the number of whole samples in d at the given rate,
// rounded toward zero.
func SamplesIn(d time.Duration, rate int) int {
	if d <= 0 || rate <= 0 {
		return 0
	}
	return int(int64(rate) * int64(d) / int64(time.Second))
}

// DurationOf returns the playback time of n samples at the given rate.
func DurationOf(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}
