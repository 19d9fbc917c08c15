package model

import (
	"strconv"
	"time"
)

// CPUMode controls how many encoder threads may be used.
// Auto lets the encoder decide; otherwise Percent (1..100) of the logical cores is used.
type CPUMode struct {
	Auto    bool
	Percent int
}

// CPUAuto is the default CPU mode.
var CPUAuto = CPUMode{Auto: true}

// String renders the mode the way it is accepted on the command line.
func (c CPUMode) String() string {
	if c.Auto {
		return "auto"
	}
	return strconv.Itoa(c.Percent) + "%"
}

// CompressionRequest describes one user-initiated compression. It is not
// modified while its attempts run.
type CompressionRequest struct {
	SourcePath  string
	SourceBytes int64   // Filled by validation when zero.
	DurationSec float64 // Filled by probing when zero.
	TargetBytes int64
	DestPath    string
	CPU         CPUMode
}

// EncodeOptions controls the ffmpeg encoding strategy shared by all attempts.
type EncodeOptions struct {
	Container    string // Target container/muxer, e.g. "mp4".
	VideoCodec   string // e.g. "libx264".
	AudioCodec   string // e.g. "aac".
	Preset       string // x264 preset, e.g. "medium".
	AudioBps     int64  // Fixed audio bitrate.
	MinVideoBps  int64  // Floor for the computed video bitrate.
	TwoPass      bool
	Threads      int // 0 lets the encoder choose.
	SourceFormat string
}

// EncodingAttempt is one encoder invocation and its observed output.
type EncodingAttempt struct {
	Index      int
	VideoBps   int64
	AudioBps   int64
	OutputPath string // Candidate file written by this attempt.
	Bytes      int64
	Elapsed    time.Duration
}

// FinalResult is returned by a completed compression.
type FinalResult struct {
	JobID       string
	OutputPath  string
	Bytes       int64
	TargetBytes int64
	SourceBytes int64
	Attempts    []EncodingAttempt
	Chosen      int  // Index into Attempts; -1 when no attempt ran.
	TargetMet   bool // Output is within tolerance of the target.
	Passthrough bool // Source was copied without encoding.
	Warning     error
}

// Ratio is the compression ratio source/output, or 0 when unknown.
func (r FinalResult) Ratio() float64 {
	if r.Bytes <= 0 {
		return 0
	}
	return float64(r.SourceBytes) / float64(r.Bytes)
}

// DiffPercent is the signed distance of the output from the target, in percent.
func (r FinalResult) DiffPercent() float64 {
	if r.TargetBytes <= 0 {
		return 0
	}
	return (float64(r.Bytes)/float64(r.TargetBytes) - 1) * 100
}
