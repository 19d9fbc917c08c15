package encoder

import (
	"os"
	"strconv"

	"vidshrink/internal/util/bitrate"
	"vidshrink/internal/util/media"
)

// Pass selects which invocation of an encode BuildArgs describes.
type Pass int

const (
	SinglePass Pass = iota
	FirstPass
	SecondPass
)

// BuildArgs constructs ffmpeg arguments for one pass of an attempt.
// The output path is always the last argument.
func BuildArgs(spec AttemptSpec, pass Pass, includeProgress bool) []string {
	enc := spec.Enc
	args := []string{"-y", "-hide_banner", "-nostdin", "-i", spec.SourcePath}

	if enc.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(enc.Threads))
	}

	args = append(args,
		"-c:v", valueOr(enc.VideoCodec, "libx264"),
		"-preset", valueOr(enc.Preset, "medium"),
		"-b:v", strconv.FormatInt(spec.VideoBps, 10),
		"-pix_fmt", "yuv420p",
	)

	if pass != SinglePass {
		n := "1"
		if pass == SecondPass {
			n = "2"
		}
		args = append(args, "-pass", n, "-passlogfile", spec.PassLogPrefix)
	}

	if includeProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}

	if pass == FirstPass {
		// Analysis only: no audio, no real output.
		return append(args, "-an", "-f", "null", os.DevNull)
	}

	args = append(args,
		"-c:a", valueOr(enc.AudioCodec, "aac"),
		"-b:a", strconv.FormatInt(bitrate.SafeAudioBps(enc.AudioBps), 10),
	)

	container := valueOr(enc.Container, "mp4")
	if isMP4Family(container) {
		args = append(args, "-movflags", "+faststart")
	}
	if media.NeedsRemux(enc.SourceFormat, container) {
		args = append(args, "-f", muxer(container))
	}

	return append(args, spec.OutputPath)
}

func muxer(container string) string {
	switch container {
	case "mkv":
		return "matroska"
	case "m4v":
		return "mp4"
	default:
		return container
	}
}

func isMP4Family(container string) bool {
	switch container {
	case "mp4", "m4v", "mov":
		return true
	}
	return false
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
