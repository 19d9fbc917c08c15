package encoder

import (
	"strconv"
	"strings"
	"time"

	"vidshrink/internal/progress"
)

// ProgressState accumulates key=value lines from ffmpeg's -progress output
// and emits an update on every "progress=" marker.
type ProgressState struct {
	JobID       string
	Attempt     int
	Stage       progress.Stage
	DurationSec float64

	OutTimeUs int64
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine updates the state from a progress line and returns an update if a progress marker was found.
func (ps *ProgressState) UpdateFromLine(line string) (u progress.Update, ok bool) {
	kv := strings.SplitN(line, "=", 2)
	if len(kv) != 2 {
		return progress.Update{}, false
	}

	key := strings.TrimSpace(kv[0])
	val := strings.TrimSpace(kv[1])

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.OutTimeUs = v
		}
	case "speed":
		ps.SpeedStr = val
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.TotalSize = v
		}
	case "progress":
		return ps.snapshot(val == "end"), true
	}
	return progress.Update{}, false
}

func (ps *ProgressState) snapshot(end bool) progress.Update {
	percent := -1.0
	if ps.DurationSec > 0 {
		percent = float64(ps.OutTimeUs) / (ps.DurationSec * 1_000_000) * 100
		if percent > 100 {
			percent = 100
		}
	}
	if end {
		percent = 100
	}

	u := progress.Update{
		JobID:   ps.JobID,
		Stage:   ps.Stage,
		Attempt: ps.Attempt,
		Percent: percent,
		Message: stageMessage(ps.Stage, ps.Attempt),
	}
	if ps.SpeedStr != "" && ps.SpeedStr != "N/A" {
		s := ps.SpeedStr
		u.Speed = &s
		if eta, ok := ps.eta(); ok {
			u.ETA = &eta
		}
	}
	if ps.TotalSize > 0 {
		b := ps.TotalSize
		u.Bytes = &b
	}
	return u
}

// eta derives remaining wall time from media time left and the encode speed.
func (ps *ProgressState) eta() (time.Duration, bool) {
	speed, err := strconv.ParseFloat(strings.TrimSuffix(ps.SpeedStr, "x"), 64)
	if err != nil || speed <= 0 || ps.DurationSec <= 0 {
		return 0, false
	}
	left := ps.DurationSec - float64(ps.OutTimeUs)/1_000_000
	if left < 0 {
		left = 0
	}
	return time.Duration(left / speed * float64(time.Second)).Round(time.Second), true
}

func stageMessage(stage progress.Stage, attempt int) string {
	msg := "Encoding"
	switch stage {
	case progress.StageAnalyzing:
		msg = "Analyzing (pass 1)"
	case progress.StageRetrying:
		msg = "Re-encoding at lower bitrate"
	}
	if attempt > 0 {
		msg += " (attempt " + strconv.Itoa(attempt+1) + ")"
	}
	return msg
}
