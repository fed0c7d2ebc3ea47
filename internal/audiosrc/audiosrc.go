// Package audiosrc provides the audio sources that feed the meter.
package audiosrc

import (
	"context"
	"math"
	"time"
)

// fromFloat converts a normalized [-1, 1] sample to int16, clamping anything
// outside of that range.
func fromFloat(v float64) int16 {
	v = math.Round(v * 32768)
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	case math.IsNaN(v):
		return 0
	default:
		return int16(v)
	}
}

// fromInt converts a sample of the given bit depth to int16.
func fromInt(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		// 8-bit PCM is unsigned.
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

// waitUntil blocks until t or until ctx is done.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
