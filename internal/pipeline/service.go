// Package pipeline provides planning and orchestration for size-targeted compression.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vidshrink/internal/encoder"
	"vidshrink/internal/metrics"
	"vidshrink/internal/model"
	"vidshrink/internal/progress"
	"vidshrink/internal/util"
	"vidshrink/internal/util/bitrate"
	"vidshrink/internal/util/format"
	"vidshrink/internal/util/media"
)

// Tuning holds the controller's empirical constants.
type Tuning struct {
	Tolerance         float64 // allowed fractional overshoot still counted as success
	RetrySafety       float64 // extra factor applied to the retry bitrate
	PassthroughMargin float64 // copy instead of encode when the source is this close to the target
}

// DefaultTuning returns the defaults used when nothing is configured.
func DefaultTuning() Tuning {
	return Tuning{
		Tolerance:         0.05,
		RetrySafety:       0.95,
		PassthroughMargin: 0.05,
	}
}

// DefaultEncodeOptions returns the encoder settings shared by all attempts.
func DefaultEncodeOptions() model.EncodeOptions {
	return model.EncodeOptions{
		Container:   "mp4",
		VideoCodec:  "libx264",
		AudioCodec:  "aac",
		Preset:      "medium",
		AudioBps:    128_000,
		MinVideoBps: 32_000,
	}
}

// Service orchestrates the validate → probe → encode → verify → retry workflow.
type Service struct {
	ffmpegPath  string
	ffprobePath string
	enc         model.EncodeOptions
	tuning      Tuning
	cores       int
	verbose     bool
	runner      util.CmdRunner
	reporter    progress.Reporter
	log         logrus.FieldLogger
	metrics     *metrics.Metrics
	jobID       string
}

// Option configures a Service.
type Option func(*Service)

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(s *Service) {
		s.ffmpegPath = p
	}
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(s *Service) {
		s.ffprobePath = p
	}
}

// WithEncodeOptions replaces the default encoder settings. Audio below the
// encoder's 32 kbps floor is raised here so the bitrate budget matches what
// ffmpeg is asked for.
func WithEncodeOptions(enc model.EncodeOptions) Option {
	return func(s *Service) {
		enc.AudioBps = bitrate.SafeAudioBps(enc.AudioBps)
		s.enc = enc
	}
}

// WithTuning overrides tolerance, retry safety and passthrough margin.
func WithTuning(t Tuning) Option {
	return func(s *Service) {
		s.tuning = t
	}
}

// WithCores sets the logical core count used for manual CPU mode.
func WithCores(n int) Option {
	return func(s *Service) {
		s.cores = n
	}
}

// WithVerbose echoes encoder command lines and output to the terminal.
func WithVerbose(v bool) Option {
	return func(s *Service) {
		s.verbose = v
	}
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithReporter attaches a progress reporter (used by TUI).
func WithReporter(rp progress.Reporter) Option {
	return func(s *Service) {
		s.reporter = rp
	}
}

// WithLogger sets the structured logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithMetrics records attempts and job outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithJobID sets the job ID associated with reporter events.
func WithJobID(id string) Option {
	return func(s *Service) {
		s.jobID = id
	}
}

// NewService constructs a new Service with the provided options.
// It applies sensible defaults for missing components.
func NewService(opts ...Option) *Service {
	s := &Service{
		enc:    DefaultEncodeOptions(),
		tuning: DefaultTuning(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = util.NewDefaultRunner()
	}
	if s.reporter == nil {
		s.reporter = progress.Nop{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.cores <= 0 {
		s.cores = runtime.NumCPU()
	}
	if s.enc.Container == "" {
		s.enc.Container = "mp4"
	}
	return s
}

// with returns a copy of s with extra options applied.
func (s *Service) with(opts ...Option) *Service {
	c := *s
	for _, o := range opts {
		o(&c)
	}
	return &c
}

// CompressToTarget encodes req.SourcePath so the result lands at or near
// req.TargetBytes, retrying once at a lower bitrate on overshoot. The
// destination is only written by the final rename (or copy for passthrough);
// candidate files are removed on every exit path.
//
// Errors are *Failure values. A missed target is not an error: the closest
// output is kept and FinalResult.Warning is ErrTargetNotFullyMet.
func (s *Service) CompressToTarget(ctx context.Context, req model.CompressionRequest) (res model.FinalResult, err error) {
	jobID := s.jobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	log := s.log.WithFields(logrus.Fields{"job": jobID, "source": req.SourcePath})
	res = model.FinalResult{JobID: jobID, TargetBytes: req.TargetBytes, Chosen: -1}
	defer func() { s.finish(log, &res, err) }()

	p, err := s.plan(ctx, jobID, req)
	if err != nil {
		return res, err
	}
	req = p.Request
	res.SourceBytes = req.SourceBytes
	res.TargetBytes = req.TargetBytes
	log = log.WithField("dest", req.DestPath)

	if p.Passthrough {
		return s.copySource(ctx, jobID, log, req, res)
	}

	log.WithFields(logrus.Fields{
		"duration":  req.DurationSec,
		"target":    req.TargetBytes,
		"video_bps": p.VideoBps,
		"threads":   p.Enc.Threads,
		"remux":     p.Remux,
	}).Info("starting compression")

	candidates := []string{media.CandidatePath(req.DestPath, 0), media.CandidatePath(req.DestPath, 1)}
	defer func() {
		for _, c := range candidates {
			_ = util.RemoveIfExists(c)
		}
	}()

	a0, err := s.attempt(ctx, jobID, log, p, 0, p.VideoBps, candidates[0])
	if err != nil {
		return res, err
	}
	res.Attempts = append(res.Attempts, a0)

	if !s.withinTolerance(a0.Bytes, req.TargetBytes) {
		next := bitrate.ScaleForOvershoot(a0.VideoBps, req.TargetBytes, a0.Bytes, s.tuning.RetrySafety)
		switch {
		case next <= 0 || next >= a0.VideoBps:
			log.WithField("video_bps", next).Warn("retry bitrate not lower, keeping first attempt")
		default:
			log.WithFields(logrus.Fields{
				"bytes":     a0.Bytes,
				"overshoot": fmt.Sprintf("%.1f%%", (float64(a0.Bytes)/float64(req.TargetBytes)-1)*100),
				"video_bps": next,
			}).Info("output over tolerance, retrying")
			a1, rerr := s.attempt(ctx, jobID, log, p, 1, next, candidates[1])
			switch {
			case rerr == nil:
				res.Attempts = append(res.Attempts, a1)
			case errors.Is(rerr, ErrCancelled):
				return res, rerr
			default:
				// The first attempt is still a usable, if oversized, result.
				log.WithError(rerr).Warn("retry failed, keeping first attempt")
				s.reporter.Log(progress.Log{JobID: jobID, Stream: progress.StreamInfo, Line: "Retry failed: " + rerr.Error()})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, cancelled(len(res.Attempts)-1, err)
	}

	res.Chosen = s.choose(res.Attempts, req.TargetBytes)
	chosen := res.Attempts[res.Chosen]
	if err := os.Rename(chosen.OutputPath, req.DestPath); err != nil {
		return res, &Failure{Kind: ErrEncode, Attempt: chosen.Index, Err: fmt.Errorf("move output into place: %w", err)}
	}
	res.OutputPath = req.DestPath
	res.Bytes = chosen.Bytes
	res.TargetMet = s.withinTolerance(chosen.Bytes, req.TargetBytes)
	if !res.TargetMet {
		res.Warning = targetMissed(chosen.Bytes, req.TargetBytes)
	}
	return res, nil
}

func (s *Service) attempt(ctx context.Context, jobID string, log logrus.FieldLogger, p Plan, index int, videoBps int64, out string) (model.EncodingAttempt, error) {
	if err := ctx.Err(); err != nil {
		return model.EncodingAttempt{}, cancelled(index, err)
	}
	start := time.Now()
	a, err := encoder.Encode(ctx, encoder.AttemptSpec{
		Index:       index,
		JobID:       jobID,
		SourcePath:  p.Request.SourcePath,
		OutputPath:  out,
		DurationSec: p.Request.DurationSec,
		VideoBps:    videoBps,
		Enc:         p.Enc,
	}, encoder.Options{
		FFmpegPath: s.ffmpegPath,
		Verbose:    s.verbose,
		Runner:     s.runner,
		Reporter:   s.reporter,
		Logger:     log,
	})
	if err != nil {
		ferr := encodeFailure(index, err)
		outcome := metrics.OutcomeFailed
		if errors.Is(ferr, ErrCancelled) {
			outcome = metrics.OutcomeCancelled
		}
		s.metrics.ObserveAttempt(index, outcome, time.Since(start))
		return a, ferr
	}
	s.metrics.ObserveAttempt(index, metrics.OutcomeSuccess, a.Elapsed)
	return a, nil
}

// choose picks the largest attempt at or under target, otherwise the
// smallest one.
func (s *Service) choose(attempts []model.EncodingAttempt, target int64) int {
	best := -1
	for i, a := range attempts {
		if a.Bytes <= target && (best < 0 || a.Bytes > attempts[best].Bytes) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	for i, a := range attempts {
		if best < 0 || a.Bytes < attempts[best].Bytes {
			best = i
		}
	}
	return best
}

func targetMissed(bytes, target int64) error {
	return fmt.Errorf("%w: output is %s, target was %s",
		ErrTargetNotFullyMet, format.HumanizeBytes(bytes), format.HumanizeBytes(target))
}

func (s *Service) withinTolerance(bytes, target int64) bool {
	return float64(bytes) <= float64(target)*(1+s.tuning.Tolerance)
}

func (s *Service) copySource(ctx context.Context, jobID string, log logrus.FieldLogger, req model.CompressionRequest, res model.FinalResult) (model.FinalResult, error) {
	log.Info("source already within target, copying without re-encoding")
	s.stage(jobID, progress.StageCopying, -1, "Source already fits; copying")
	if err := ctx.Err(); err != nil {
		return res, cancelled(-1, err)
	}
	n, err := util.CopyFile(req.SourcePath, req.DestPath)
	if err != nil {
		return res, &Failure{Kind: ErrEncode, Attempt: -1, Err: fmt.Errorf("copy source: %w", err)}
	}
	res.OutputPath = req.DestPath
	res.Bytes = n
	res.Passthrough = true
	res.TargetMet = s.withinTolerance(n, req.TargetBytes)
	if !res.TargetMet {
		res.Warning = targetMissed(n, req.TargetBytes)
	}
	return res, nil
}

// finish emits the terminal update and result, and records the outcome.
func (s *Service) finish(log logrus.FieldLogger, res *model.FinalResult, err error) {
	outcome := metrics.OutcomeSuccess
	stage := progress.StageCompleted
	msg := fmt.Sprintf("Saved: %s (%s)", filepath.Base(res.OutputPath), format.HumanizeBytes(res.Bytes))

	switch {
	case errors.Is(err, ErrCancelled):
		outcome, stage, msg = metrics.OutcomeCancelled, progress.StageCancelled, "Cancelled"
		log.Warn("compression cancelled")
	case err != nil:
		outcome, stage, msg = metrics.OutcomeFailed, progress.StageError, err.Error()
		log.WithError(err).Error("compression failed")
	case res.Warning != nil:
		outcome = metrics.OutcomeWarning
		log.WithField("bytes", res.Bytes).Warn(res.Warning.Error())
	case res.Passthrough:
		outcome = metrics.OutcomeCopied
		log.WithField("bytes", res.Bytes).Info("copied")
	default:
		log.WithFields(logrus.Fields{"bytes": res.Bytes, "attempts": len(res.Attempts)}).Info("compression finished")
	}
	s.metrics.ObserveJob(outcome, res.Bytes, res.Ratio())

	percent := 100.0
	if err != nil {
		percent = -1
	}
	s.reporter.Update(progress.Update{
		JobID:   res.JobID,
		Stage:   stage,
		Attempt: res.Chosen,
		Percent: percent,
		Message: msg,
	})
	s.reporter.Result(progress.Result{
		JobID:      res.JobID,
		OutputPath: res.OutputPath,
		Bytes:      res.Bytes,
		Warning:    res.Warning,
		Err:        err,
	})
}

func (s *Service) stage(jobID string, stage progress.Stage, attempt int, msg string) {
	s.reporter.Update(progress.Update{
		JobID:   jobID,
		Stage:   stage,
		Attempt: attempt,
		Percent: -1,
		Message: msg,
	})
}
