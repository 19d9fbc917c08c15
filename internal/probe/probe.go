// Package probe reads source metadata through ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vidshrink/internal/util"
)

// Info is the subset of ffprobe output the compressor needs.
type Info struct {
	DurationSec float64
	Width       int
	Height      int
	FormatName  string // e.g. "mov,mp4,m4a,3gp,3g2,mj2"
	VideoCodec  string
	AudioCodec  string
	BitRate     int64 // container bitrate in bits/s, 0 if unknown
	Size        int64
}

// HasVideo reports whether a video stream was found.
func (i Info) HasVideo() bool { return i.VideoCodec != "" }

// ErrNoDuration is returned when ffprobe reports no usable duration.
var ErrNoDuration = errors.New("could not determine duration")

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs ffprobe on path and parses its JSON output.
func Probe(ctx context.Context, runner util.CmdRunner, ffprobePath, path string) (Info, error) {
	if ffprobePath == "" {
		return Info{}, errors.New("ffprobe path is required")
	}
	res, err := runner.Run(ctx, util.CmdSpec{
		Path: ffprobePath,
		Args: []string{
			"-v", "error",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
		CaptureStdout: true,
	})
	if err != nil {
		if diag := util.TailLines(res.Stderr, 5); diag != "" {
			return Info{}, fmt.Errorf("ffprobe: %w: %s", err, diag)
		}
		return Info{}, fmt.Errorf("ffprobe: %w", err)
	}
	return Parse(res.Stdout)
}

// Parse decodes ffprobe's JSON output. The container duration is preferred,
// falling back to the longest stream duration.
func Parse(data []byte) (Info, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := Info{
		FormatName:  out.Format.FormatName,
		DurationSec: parseFloat(out.Format.Duration),
		Size:        parseInt(out.Format.Size),
		BitRate:     parseInt(out.Format.BitRate),
	}
	var longest float64
	for _, s := range out.Streams {
		if d := parseFloat(s.Duration); d > longest {
			longest = d
		}
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if info.DurationSec <= 0 {
		info.DurationSec = longest
	}
	if info.DurationSec <= 0 {
		return info, ErrNoDuration
	}
	return info, nil
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
