package bitrate

import (
	"errors"
	"math"
)

var (
	// ErrInvalidInput is returned for a non-positive duration or target size.
	ErrInvalidInput = errors.New("duration and target size must be positive")
	// ErrInfeasible means the target cannot hold even the audio stream for the given duration.
	ErrInfeasible = errors.New("target size too small for duration and audio bitrate")
)

// ComputeTargetBitrate returns the video bitrate (bits/s) that fits targetBytes
// into durationSec alongside a fixed audio stream. Results below minVideoBps
// are raised to that floor, but never above the total available rate.
func ComputeTargetBitrate(durationSec float64, targetBytes, audioBps, minVideoBps int64) (int64, error) {
	if durationSec <= 0 || targetBytes <= 0 || math.IsNaN(durationSec) || math.IsInf(durationSec, 0) {
		return 0, ErrInvalidInput
	}
	totalBps := float64(targetBytes) * 8 / durationSec
	videoBps := int64(math.Floor(totalBps - float64(audioBps)))
	if videoBps <= 0 {
		return 0, ErrInfeasible
	}
	floor := minVideoBps
	if limit := int64(math.Floor(totalBps)); floor > limit {
		floor = limit
	}
	if videoBps < floor {
		videoBps = floor
	}
	return videoBps, nil
}

// ScaleForOvershoot lowers prevBps by the observed overshoot ratio target/actual,
// times a safety factor.
func ScaleForOvershoot(prevBps, targetBytes, actualBytes int64, safety float64) int64 {
	if actualBytes <= 0 || targetBytes <= 0 {
		return prevBps
	}
	if safety <= 0 || safety > 1 {
		safety = 1
	}
	return int64(math.Round(float64(prevBps) * (float64(targetBytes) / float64(actualBytes)) * safety))
}

// Threads converts a CPU percentage into an encoder thread count, rounding down
// and never returning less than one.
func Threads(percent, logicalCores int) int {
	if logicalCores < 1 {
		logicalCores = 1
	}
	n := int(float64(percent) / 100 * float64(logicalCores))
	return Clamp(n, 1, logicalCores)
}

// Clamp returns v constrained to [min, max].
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SafeAudioBps ensures audio bitrate is at least 32 kbps.
func SafeAudioBps(v int64) int64 {
	if v < 32_000 {
		return 32_000
	}
	return v
}
