package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"vidshrink/internal/model"
	"vidshrink/internal/progress"
	"vidshrink/internal/util"
)

// ErrEmptyOutput is returned when ffmpeg exits cleanly but wrote nothing.
var ErrEmptyOutput = errors.New("encoder produced an empty output file")

// Options control ffmpeg execution.
type Options struct {
	FFmpegPath string
	Verbose    bool
	Runner     util.CmdRunner     // nil uses util.NewDefaultRunner
	Reporter   progress.Reporter  // nil discards events
	Logger     logrus.FieldLogger // nil uses the standard logger
}

// AttemptSpec is one encode of the source at a fixed video bitrate.
type AttemptSpec struct {
	Index       int
	JobID       string
	SourcePath  string
	OutputPath  string // Candidate file; removed again on failure.
	DurationSec float64
	VideoBps    int64
	Enc         model.EncodeOptions

	// PassLogPrefix is the two-pass stats prefix. Encode fills it with a
	// private temp location when empty.
	PassLogPrefix string
}

// ExitError reports a non-zero ffmpeg exit.
type ExitError struct {
	Code       int
	Pass       Pass
	Diagnostic string // last stderr lines
	Err        error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.Code)
	if e.Pass == FirstPass {
		msg += " during analysis pass"
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Encode runs one attempt and returns the observed output. On any error the
// candidate file is removed. A cancelled ctx yields an error wrapping ctx.Err().
func Encode(ctx context.Context, spec AttemptSpec, opts Options) (model.EncodingAttempt, error) {
	if opts.FFmpegPath == "" {
		return model.EncodingAttempt{}, errors.New("ffmpeg path is required")
	}
	if spec.OutputPath == "" {
		return model.EncodingAttempt{}, errors.New("output path is required")
	}
	if spec.VideoBps <= 0 {
		return model.EncodingAttempt{}, fmt.Errorf("invalid video bitrate %d", spec.VideoBps)
	}
	if opts.Runner == nil {
		opts.Runner = util.NewDefaultRunner()
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	log := opts.Logger.WithFields(logrus.Fields{
		"job":       spec.JobID,
		"attempt":   spec.Index,
		"video_bps": spec.VideoBps,
	})

	if err := util.EnsureDir(filepath.Dir(spec.OutputPath)); err != nil {
		return model.EncodingAttempt{}, fmt.Errorf("ensure output dir: %w", err)
	}

	start := time.Now()
	attempt := model.EncodingAttempt{
		Index:      spec.Index,
		VideoBps:   spec.VideoBps,
		AudioBps:   spec.Enc.AudioBps,
		OutputPath: spec.OutputPath,
	}

	passes := []Pass{SinglePass}
	if spec.Enc.TwoPass {
		passes = []Pass{FirstPass, SecondPass}
		if spec.PassLogPrefix == "" {
			dir, err := util.MakeTempWorkdir("passlog")
			if err != nil {
				return attempt, fmt.Errorf("create passlog dir: %w", err)
			}
			defer os.RemoveAll(dir)
			spec.PassLogPrefix = filepath.Join(dir, "ffmpeg2pass")
		}
	}

	for _, pass := range passes {
		if err := runPass(ctx, spec, pass, opts, log); err != nil {
			_ = util.RemoveIfExists(spec.OutputPath)
			return attempt, err
		}
	}

	fi, err := os.Stat(spec.OutputPath)
	if err != nil {
		return attempt, fmt.Errorf("stat output: %w", err)
	}
	if fi.Size() == 0 {
		_ = util.RemoveIfExists(spec.OutputPath)
		return attempt, ErrEmptyOutput
	}

	attempt.Bytes = fi.Size()
	attempt.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"bytes":   attempt.Bytes,
		"elapsed": attempt.Elapsed.Round(time.Millisecond),
	}).Info("attempt finished")
	return attempt, nil
}

func runPass(ctx context.Context, spec AttemptSpec, pass Pass, opts Options, log logrus.FieldLogger) error {
	stage := progress.StageEncoding
	switch {
	case pass == FirstPass:
		stage = progress.StageAnalyzing
	case spec.Index > 0:
		stage = progress.StageRetrying
	}

	args := BuildArgs(spec, pass, true)
	cmdline := util.ShellQuote(opts.FFmpegPath, args)
	log.WithField("pass", int(pass)).Debug(cmdline)
	opts.Reporter.Log(progress.Log{JobID: spec.JobID, Stream: progress.StreamInfo, Line: "Running command: " + cmdline})

	ps := &ProgressState{JobID: spec.JobID, Attempt: spec.Index, Stage: stage, DurationSec: spec.DurationSec}
	opts.Reporter.Update(progress.Update{
		JobID:   spec.JobID,
		Stage:   stage,
		Attempt: spec.Index,
		Percent: 0,
		Message: stageMessage(stage, spec.Index),
	})

	res, err := opts.Runner.Run(ctx, util.CmdSpec{
		Path:    opts.FFmpegPath,
		Args:    args,
		Verbose: opts.Verbose,
		StdoutLine: func(line string) {
			if u, ok := ps.UpdateFromLine(line); ok {
				opts.Reporter.Update(u)
			}
		},
		StderrLine: func(line string) {
			opts.Reporter.Log(progress.Log{JobID: spec.JobID, Stream: progress.StreamStderr, Line: line})
		},
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("encode interrupted: %w", ctxErr)
	}
	code := res.Code
	if code == 0 {
		code = -1
	}
	return &ExitError{
		Code:       code,
		Pass:       pass,
		Diagnostic: util.TailLines(res.Stderr, 20),
		Err:        err,
	}
}
