package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidshrink/internal/config"
	"vidshrink/internal/dirs"
	"vidshrink/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (ffmpeg, ffprobe) and configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := config.Load()
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("config: %w", err)}
			}
			out := cmd.OutOrStdout()

			ff, ferr := deps.FindFFmpeg(s.FFmpegPath)
			fp, perr := deps.FindFFprobe(s.FFprobePath)
			fmt.Fprintf(out, "FFmpeg:   %s\n", orMissing(ff, ferr))
			fmt.Fprintf(out, "FFprobe:  %s\n", orMissing(fp, perr))

			cfgFile := viper.ConfigFileUsed()
			if cfgFile == "" {
				cfgFile = "(none)"
			}
			fmt.Fprintf(out, "Config:   %s\n", cfgFile)
			if logFile, err := dirs.DefaultLogFile(); err == nil && s.LogFile == "" {
				fmt.Fprintf(out, "Log file: %s\n", logFile)
			} else if s.LogFile != "" {
				fmt.Fprintf(out, "Log file: %s\n", s.LogFile)
			}

			if err := errors.Join(ferr, perr); err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			return nil
		},
	}
}

func orMissing(path string, err error) string {
	if err != nil {
		return "missing"
	}
	return path
}
