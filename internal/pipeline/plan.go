package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"vidshrink/internal/model"
	"vidshrink/internal/probe"
	"vidshrink/internal/progress"
	"vidshrink/internal/util"
	"vidshrink/internal/util/bitrate"
	"vidshrink/internal/util/format"
	"vidshrink/internal/util/media"
)

// Plan is the computed strategy for a request, produced without encoding.
type Plan struct {
	Request     model.CompressionRequest // normalized: sizes, duration and destination filled
	Info        probe.Info
	Enc         model.EncodeOptions
	VideoBps    int64 // initial video bitrate; 0 for passthrough
	Passthrough bool  // source is copied instead of encoded
	Remux       bool  // container changes during the encode
	FFmpegPath  string
	FFprobePath string
}

// Plan validates req, probes the source and computes the first attempt's
// parameters. No encoder process is started.
func (s *Service) Plan(ctx context.Context, req model.CompressionRequest) (Plan, error) {
	return s.plan(ctx, s.jobID, req)
}

func (s *Service) plan(ctx context.Context, jobID string, req model.CompressionRequest) (Plan, error) {
	s.stage(jobID, progress.StageValidating, -1, "Validating input")
	req, err := s.validate(req)
	if err != nil {
		return Plan{Request: req}, err
	}

	p := Plan{
		Request:     req,
		Enc:         s.enc,
		FFmpegPath:  s.ffmpegPath,
		FFprobePath: s.ffprobePath,
	}
	p.Enc.SourceFormat = media.Container(req.SourcePath)
	if !req.CPU.Auto {
		p.Enc.Threads = bitrate.Threads(req.CPU.Percent, s.cores)
	}
	p.Remux = media.NeedsRemux(p.Enc.SourceFormat, p.Enc.Container)

	if err := ctx.Err(); err != nil {
		return p, cancelled(-1, err)
	}

	if req.DurationSec > 0 {
		p.Info = probe.Info{DurationSec: req.DurationSec, Size: req.SourceBytes}
	} else {
		s.stage(jobID, progress.StageProbing, -1, "Reading video duration")
		info, err := probe.Probe(ctx, s.runner, s.ffprobePath, req.SourcePath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p, cancelled(-1, ctxErr)
			}
			return p, &Failure{Kind: ErrProbe, Attempt: -1, Err: err}
		}
		p.Info = info
		p.Request.DurationSec = info.DurationSec
	}

	if s.passthrough(p) {
		p.Passthrough = true
		return p, nil
	}

	vbps, err := bitrate.ComputeTargetBitrate(p.Request.DurationSec, req.TargetBytes, p.Enc.AudioBps, p.Enc.MinVideoBps)
	if err != nil {
		if errors.Is(err, bitrate.ErrInfeasible) {
			return p, validationErr("%s is too small for %.1fs of video with %d kbps audio: %w",
				format.HumanizeBytes(req.TargetBytes), p.Request.DurationSec, p.Enc.AudioBps/1000, err)
		}
		return p, &Failure{Kind: ErrValidation, Attempt: -1, Err: err}
	}
	p.VideoBps = vbps
	return p, nil
}

// validate checks req before any subprocess runs and fills derived fields.
func (s *Service) validate(req model.CompressionRequest) (model.CompressionRequest, error) {
	if req.SourcePath == "" {
		return req, validationErr("source path is required")
	}
	size, err := util.StatRegular(req.SourcePath)
	if err != nil {
		return req, validationErr("source: %w", err)
	}
	if size == 0 {
		return req, validationErr("source %s is empty", req.SourcePath)
	}
	req.SourceBytes = size

	if req.TargetBytes <= 0 {
		return req, validationErr("target size must be positive")
	}
	if req.TargetBytes > req.SourceBytes {
		return req, validationErr("target size %s exceeds source size %s",
			format.HumanizeBytes(req.TargetBytes), format.HumanizeBytes(req.SourceBytes))
	}
	if !req.CPU.Auto && (req.CPU.Percent < 1 || req.CPU.Percent > 100) {
		return req, validationErr("cpu percent %d out of range 1..100", req.CPU.Percent)
	}

	if req.DestPath == "" {
		req.DestPath = media.DefaultOutputPath(req.SourcePath, s.enc.Container)
	}
	if util.SamePath(req.DestPath, req.SourcePath) {
		return req, validationErr("output %s would overwrite the source", req.DestPath)
	}
	if err := util.EnsureDir(filepath.Dir(req.DestPath)); err != nil {
		return req, validationErr("output directory: %w", err)
	}
	return req, nil
}

// passthrough reports whether the source is already close enough to the
// target that encoding would only lose quality. The copy must itself be
// within tolerance.
func (s *Service) passthrough(p Plan) bool {
	if s.tuning.PassthroughMargin <= 0 || p.Remux {
		return false
	}
	src := p.Request.SourceBytes
	if !s.withinTolerance(src, p.Request.TargetBytes) {
		return false
	}
	return float64(src-p.Request.TargetBytes)/float64(src) < s.tuning.PassthroughMargin
}

// String renders the plan for dry-run output.
func (p Plan) String() string {
	if p.Passthrough {
		return fmt.Sprintf("copy %s -> %s (%s, already within target)",
			p.Request.SourcePath, p.Request.DestPath, format.HumanizeBytes(p.Request.SourceBytes))
	}
	return fmt.Sprintf("encode %s -> %s at %d kbps video + %d kbps audio (target %s, %.1fs)",
		p.Request.SourcePath, p.Request.DestPath, p.VideoBps/1000, p.Enc.AudioBps/1000,
		format.HumanizeBytes(p.Request.TargetBytes), p.Request.DurationSec)
}
