package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidshrink/internal/config"
	"vidshrink/internal/pipeline"
)

const (
	ExitOK         = 0
	ExitCLIError   = 1
	ExitMissingDep = 2
	ExitValidation = 3
	ExitProbe      = 4
	ExitEncode     = 5
	ExitCancelled  = 6
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps a pipeline failure to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, pipeline.ErrValidation):
		return ExitValidation
	case errors.Is(err, pipeline.ErrProbe):
		return ExitProbe
	case errors.Is(err, pipeline.ErrEncode):
		return ExitEncode
	}
	return ExitCLIError
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vidshrink <video>",
		Short: "Compress a video to a target file size",
		Long: "vidshrink re-encodes a video with ffmpeg so the result lands at or just under a chosen size. " +
			"It computes the bitrate from the duration, and if the first encode overshoots it retries once at a lower bitrate.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PreRunE:       compressPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd, args, runMode{})
		},
	}

	// Persistent flags available to all subcommands
	root.PersistentFlags().BoolP("verbose", "v", false, "Show ffmpeg commands and output")
	root.PersistentFlags().String("ffmpeg", "", "Path to ffmpeg (default: from PATH)")
	root.PersistentFlags().String("ffprobe", "", "Path to ffprobe (default: from PATH)")
	root.PersistentFlags().String("log-level", "info", "Log file level: debug, info, warn, error")
	root.PersistentFlags().String("log-file", "", "Log file (default: state dir/vidshrink.log)")
	root.PersistentFlags().String("metrics-push-url", "", "Prometheus Pushgateway URL to push job metrics to")

	// `vidshrink <video>` is shorthand for `vidshrink compress <video>`.
	bindCompressFlags(root.Flags())

	root.AddCommand(newCompressCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindCompressFlags(fs *pflag.FlagSet) {
	fs.StringP("size", "s", "", `Target size: a number in --unit, "12.5MB", or "40%" of the source (default 80%)`)
	fs.StringP("unit", "u", "MB", "Unit for a bare --size: KB, MB, GB")
	fs.StringP("output", "o", "", "Output file (default: <name>_compressed.<container> next to the source)")
	fs.String("cpu", "auto", `Encoder CPU share: "auto" or 10..100 percent of logical cores`)
	fs.Bool("two-pass", false, "Use two-pass encoding for tighter size control")
	fs.Float64("tolerance", pipeline.DefaultTuning().Tolerance, "Accepted overshoot over the target, as a fraction")
	fs.Int("audio-kbps", int(pipeline.DefaultEncodeOptions().AudioBps/1000), "Audio bitrate in kbps")
	fs.String("container", pipeline.DefaultEncodeOptions().Container, "Output container: mp4, mkv, mov, webm")
	fs.String("preset", pipeline.DefaultEncodeOptions().Preset, "x264 preset, e.g. veryfast, medium, slow")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
}

// compressFlagKeys maps config keys to the compress flags that override them.
var compressFlagKeys = map[string]string{
	"two_pass":   "two-pass",
	"tolerance":  "tolerance",
	"audio_kbps": "audio-kbps",
	"container":  "container",
	"preset":     "preset",
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	if err := config.Init(root); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	return root.ExecuteContext(ctx)
}
