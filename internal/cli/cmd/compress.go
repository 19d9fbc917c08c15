package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"vidshrink/internal/cli"
	"vidshrink/internal/config"
	"vidshrink/internal/dirs"
	"vidshrink/internal/logger"
	"vidshrink/internal/metrics"
	"vidshrink/internal/model"
	"vidshrink/internal/pipeline"
	"vidshrink/internal/progress"
	"vidshrink/internal/ui"
	"vidshrink/internal/util"
	"vidshrink/internal/util/deps"
	"vidshrink/internal/util/format"
)

type runMode struct {
	ForceTUI bool
	PlanOnly bool
}

func newCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "compress <video>",
		Short:         "Compress a video to a target size",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PreRunE:       compressPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd, args, runMode{})
		},
	}
	bindCompressFlags(cmd.Flags())
	return cmd
}

type ctxKey string

const compressInputsKey ctxKey = "compressInputs"

type compressInputs struct {
	Settings config.Settings
	Request  model.CompressionRequest
	NoUI     bool
}

func compressPreRun(cmd *cobra.Command, args []string) error {
	config.BindFlags(viper.GetViper(), cmd.Flags(), compressFlagKeys)
	in, err := assembleCompressInputs(cmd, args)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), compressInputsKey, in))
	return nil
}

func assembleCompressInputs(cmd *cobra.Command, args []string) (compressInputs, error) {
	settings, err := config.Load()
	if err != nil {
		return compressInputs{}, &ExitError{Code: ExitCLIError, Err: fmt.Errorf("config: %w", err)}
	}

	source := args[0]
	sourceBytes, err := util.StatRegular(source)
	if err != nil {
		return compressInputs{}, invalidInput(fmt.Errorf("source: %w", err))
	}

	size, _ := cmd.Flags().GetString("size")
	unit, _ := cmd.Flags().GetString("unit")
	output, _ := cmd.Flags().GetString("output")
	cpuFlag, _ := cmd.Flags().GetString("cpu")
	noUI, _ := cmd.Flags().GetBool("no-ui")

	target, err := cli.ParseTarget(size, unit, sourceBytes)
	if err != nil {
		return compressInputs{}, invalidInput(err)
	}
	cpu, err := cli.ParseCPU(cpuFlag)
	if err != nil {
		return compressInputs{}, invalidInput(err)
	}

	return compressInputs{
		Settings: settings,
		Request: model.CompressionRequest{
			SourcePath:  source,
			SourceBytes: sourceBytes,
			TargetBytes: target,
			DestPath:    cli.ResolveOutput(source, output, settings.Container),
			CPU:         cpu,
		},
		NoUI: noUI,
	}, nil
}

// invalidInput reports malformed request input the same way the pipeline
// reports a rejected request.
func invalidInput(err error) error {
	return &ExitError{Code: ExitValidation, Err: fmt.Errorf("%w: %w", pipeline.ErrValidation, err)}
}

func runCompress(cmd *cobra.Command, args []string, mode runMode) error {
	in, ok := cmd.Context().Value(compressInputsKey).(compressInputs)
	if !ok {
		var err error
		if in, err = assembleCompressInputs(cmd, args); err != nil {
			return err
		}
	}
	s := in.Settings

	ffmpegPath, err := deps.FindFFmpeg(s.FFmpegPath)
	if err != nil {
		return &ExitError{Code: ExitMissingDep, Err: err}
	}
	ffprobePath, err := deps.FindFFprobe(s.FFprobePath)
	if err != nil {
		return &ExitError{Code: ExitMissingDep, Err: err}
	}

	useTUI := !mode.PlanOnly && (mode.ForceTUI || (!in.NoUI && isTerminal()))

	// The TUI owns the terminal, so console logging is only for plain runs.
	var console io.Writer
	if s.Verbose && !useTUI {
		console = cmd.ErrOrStderr()
	}
	log, err := newLogger(s, console)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("logger: %w", err)}
	}

	met := metrics.New()
	opts := []pipeline.Option{
		pipeline.WithFFmpegPath(ffmpegPath),
		pipeline.WithFFprobePath(ffprobePath),
		pipeline.WithEncodeOptions(s.EncodeOptions()),
		pipeline.WithTuning(s.Tuning()),
		pipeline.WithVerbose(s.Verbose),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(met),
	}
	if !useTUI {
		opts = append(opts, pipeline.WithReporter(&textReporter{w: cmd.ErrOrStderr(), verbose: s.Verbose}))
	}
	svc := pipeline.NewService(opts...)

	ctx := cmd.Context()
	if mode.PlanOnly {
		p, err := svc.Plan(ctx, in.Request)
		if err != nil {
			return &ExitError{Code: exitCode(err), Err: err}
		}
		printPlan(cmd.OutOrStdout(), p)
		return nil
	}

	var res model.FinalResult
	if useTUI {
		job := pipeline.Start(ctx, svc, in.Request)
		res, err = ui.Run(ctx, job, ui.Info{
			Source:      in.Request.SourcePath,
			Dest:        in.Request.DestPath,
			SourceBytes: in.Request.SourceBytes,
			TargetBytes: in.Request.TargetBytes,
		})
	} else {
		res, err = svc.CompressToTarget(ctx, in.Request)
	}

	if s.MetricsPushURL != "" {
		// Cancellation must not prevent the push of a cancelled job's counters.
		if perr := met.Push(context.WithoutCancel(ctx), s.MetricsPushURL); perr != nil {
			log.WithError(perr).Warn("metrics push failed")
		}
	}

	if err != nil {
		return &ExitError{Code: exitCode(err), Err: err}
	}
	if !useTUI {
		printResult(cmd.OutOrStdout(), res)
	}
	return nil
}

func newLogger(s config.Settings, console io.Writer) (*logrus.Logger, error) {
	cfg := logger.DefaultConfig()
	cfg.Level = s.LogLevel
	cfg.FilePath = s.LogFile
	if cfg.FilePath == "" {
		if p, err := dirs.DefaultLogFile(); err == nil {
			cfg.FilePath = p
		}
	}
	cfg.Console = console
	return logger.NewLogger(cfg)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// textReporter prints stage changes for non-interactive runs. Percent
// updates are folded into 25% steps so logs stay short.
type textReporter struct {
	w       io.Writer
	verbose bool

	mu      sync.Mutex
	lastMsg string
	lastPct int
}

func (r *textReporter) Update(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.Message != "" && u.Message != r.lastMsg {
		r.lastMsg, r.lastPct = u.Message, -1
		fmt.Fprintln(r.w, u.Message)
	}
	if u.Percent < 0 || u.Stage.Terminal() {
		return
	}
	if step := int(u.Percent) / 25 * 25; step > r.lastPct && step > 0 && step < 100 {
		r.lastPct = step
		fmt.Fprintf(r.w, "  %d%%\n", step)
	}
}

func (r *textReporter) Log(l progress.Log) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, strings.TrimRight(l.Line, "\r\n"))
}

func (r *textReporter) Result(progress.Result) {}

func printResult(w io.Writer, res model.FinalResult) {
	fmt.Fprintf(w, "Saved: %s (%s, %.2fx smaller than %s)\n",
		res.OutputPath, format.HumanizeBytes(res.Bytes), res.Ratio(), format.HumanizeBytes(res.SourceBytes))
	for _, a := range res.Attempts {
		fmt.Fprintf(w, "  attempt %d: %d kbps video, %s in %s\n",
			a.Index+1, a.VideoBps/1000, format.HumanizeBytes(a.Bytes), format.Duration(a.Elapsed))
	}
	if res.Warning != nil {
		fmt.Fprintf(w, "warning: %v\n", res.Warning)
	}
}

// printPlan outputs the computed strategy without executing it.
func printPlan(w io.Writer, p pipeline.Plan) {
	fmt.Fprintln(w, "Plan:")
	fmt.Fprintf(w, "- Source:         %s (%s)\n", p.Request.SourcePath, format.HumanizeBytes(p.Request.SourceBytes))
	fmt.Fprintf(w, "- Output:         %s\n", p.Request.DestPath)
	fmt.Fprintf(w, "- Target:         %s\n", format.HumanizeBytes(p.Request.TargetBytes))
	fmt.Fprintf(w, "- Duration:       %.2fs\n", p.Request.DurationSec)
	fmt.Fprintf(w, "- FFmpeg:         %s\n", p.FFmpegPath)
	fmt.Fprintf(w, "- FFprobe:        %s\n", p.FFprobePath)
	if p.Passthrough {
		fmt.Fprintln(w, "- Mode:           copy (source already within target)")
		return
	}
	mode := "single pass"
	if p.Enc.TwoPass {
		mode = "two pass"
	}
	fmt.Fprintf(w, "- Mode:           %s %s, preset %s\n", p.Enc.VideoCodec, mode, p.Enc.Preset)
	fmt.Fprintf(w, "- Video bitrate:  %d kbps\n", p.VideoBps/1000)
	fmt.Fprintf(w, "- Audio bitrate:  %d kbps (%s)\n", p.Enc.AudioBps/1000, p.Enc.AudioCodec)
	threads := "auto"
	if p.Enc.Threads > 0 {
		threads = fmt.Sprint(p.Enc.Threads)
	}
	fmt.Fprintf(w, "- Threads:        %s\n", threads)
	if p.Remux {
		fmt.Fprintf(w, "- Container:      %s -> %s\n", p.Enc.SourceFormat, p.Enc.Container)
	}
}
