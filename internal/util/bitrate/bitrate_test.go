package bitrate

import (
	"errors"
	"testing"
)

func TestComputeTargetBitrate(t *testing.T) {
	tests := []struct {
		name        string
		durationSec float64
		targetBytes int64
		audioBps    int64
		minVideoBps int64
		want        int64
		wantErr     error
	}{
		{
			name:        "10MB for 120s with 128k audio",
			durationSec: 120,
			targetBytes: 10 * 1024 * 1024,
			audioBps:    128_000,
			minVideoBps: 32_000,
			want:        571_050, // floor(83886080/120 - 128000)
		},
		{
			name:        "50MB for 60s",
			durationSec: 60,
			targetBytes: 50 * 1024 * 1024,
			audioBps:    128_000,
			want:        6_862_506,
		},
		{
			name:        "below floor is clamped",
			durationSec: 100,
			targetBytes: 200_000, // 16000 bps total
			audioBps:    4_000,
			minVideoBps: 32_000,
			want:        16_000, // floor capped at total rate
		},
		{
			name:        "positive but under floor",
			durationSec: 10,
			targetBytes: 200_000, // 160000 bps total
			audioBps:    140_000,
			minVideoBps: 32_000,
			want:        32_000,
		},
		{
			name:        "audio eats the whole budget",
			durationSec: 600,
			targetBytes: 1024 * 1024,
			audioBps:    128_000,
			wantErr:     ErrInfeasible,
		},
		{name: "zero duration", durationSec: 0, targetBytes: 1, wantErr: ErrInvalidInput},
		{name: "negative duration", durationSec: -1, targetBytes: 1, wantErr: ErrInvalidInput},
		{name: "zero target", durationSec: 10, targetBytes: 0, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeTargetBitrate(tt.durationSec, tt.targetBytes, tt.audioBps, tt.minVideoBps)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ComputeTargetBitrate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeTargetBitrate() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputeTargetBitrate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputeTargetBitrate_NeverExceedsTotalRate(t *testing.T) {
	durations := []float64{0.5, 1, 7.3, 60, 120, 3600}
	targets := []int64{10_000, 1 << 20, 10 << 20, 1 << 30}
	audios := []int64{0, 32_000, 128_000}
	for _, d := range durations {
		for _, size := range targets {
			for _, a := range audios {
				got, err := ComputeTargetBitrate(d, size, a, 64_000)
				if err != nil {
					continue
				}
				total := float64(size) * 8 / d
				if float64(got) > total {
					t.Errorf("d=%v size=%d audio=%d: got %d > total %v", d, size, a, got, total)
				}
			}
		}
	}
}

func TestComputeTargetBitrate_MonotonicInDuration(t *testing.T) {
	const size = 25 * 1024 * 1024
	prev := int64(-1)
	for d := 3600.0; d >= 1; d /= 2 {
		got, err := ComputeTargetBitrate(d, size, 128_000, 0)
		if err != nil {
			continue
		}
		if prev >= 0 && got < prev {
			t.Fatalf("bitrate for shorter duration %v (%d) is lower than for longer (%d)", d, got, prev)
		}
		prev = got
	}
}

func TestScaleForOvershoot(t *testing.T) {
	tests := []struct {
		name   string
		prev   int64
		target int64
		actual int64
		safety float64
		want   int64
	}{
		{name: "12MB for 10MB target", prev: 600_000, target: 10, actual: 12, safety: 1, want: 500_000},
		{name: "with safety", prev: 600_000, target: 10, actual: 12, safety: 0.95, want: 475_000},
		{name: "invalid safety treated as 1", prev: 600_000, target: 10, actual: 12, safety: 2, want: 500_000},
		{name: "zero actual keeps bitrate", prev: 600_000, target: 10, actual: 0, safety: 1, want: 600_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleForOvershoot(tt.prev, tt.target, tt.actual, tt.safety); got != tt.want {
				t.Errorf("ScaleForOvershoot() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestThreads(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		cores   int
		want    int
	}{
		{name: "half of eight", percent: 50, cores: 8, want: 4},
		{name: "rounds down", percent: 30, cores: 8, want: 2},
		{name: "at least one", percent: 10, cores: 4, want: 1},
		{name: "all cores", percent: 100, cores: 12, want: 12},
		{name: "zero cores treated as one", percent: 100, cores: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Threads(tt.percent, tt.cores); got != tt.want {
				t.Errorf("Threads(%d, %d) = %d, want %d", tt.percent, tt.cores, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		v    int
		min  int
		max  int
		want int
	}{
		{name: "value in range", v: 50, min: 0, max: 100, want: 50},
		{name: "value below min", v: -10, min: 0, max: 100, want: 0},
		{name: "value above max", v: 150, min: 0, max: 100, want: 100},
		{name: "single value range", v: 50, min: 42, max: 42, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.v, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %v, want %v", tt.v, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestSafeAudioBps(t *testing.T) {
	tests := []struct {
		v    int64
		want int64
	}{
		{v: 0, want: 32_000},
		{v: 16_000, want: 32_000},
		{v: 128_000, want: 128_000},
	}
	for _, tt := range tests {
		if got := SafeAudioBps(tt.v); got != tt.want {
			t.Errorf("SafeAudioBps(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
