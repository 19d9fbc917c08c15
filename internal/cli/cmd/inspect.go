package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vidshrink/internal/config"
	"vidshrink/internal/probe"
	"vidshrink/internal/util"
	"vidshrink/internal/util/deps"
	"vidshrink/internal/util/format"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inspect <video>",
		Short:         "Show what ffprobe reports about a video",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load()
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("config: %w", err)}
			}
			ffprobePath, err := deps.FindFFprobe(s.FFprobePath)
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			info, err := probe.Probe(cmd.Context(), util.NewDefaultRunner(), ffprobePath, args[0])
			if err != nil {
				return &ExitError{Code: ExitProbe, Err: err}
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "File:      %s\n", args[0])
			fmt.Fprintf(out, "Format:    %s\n", info.FormatName)
			fmt.Fprintf(out, "Duration:  %.2fs\n", info.DurationSec)
			fmt.Fprintf(out, "Size:      %s\n", format.HumanizeBytes(info.Size))
			if info.BitRate > 0 {
				fmt.Fprintf(out, "Bitrate:   %d kbps\n", info.BitRate/1000)
			}
			if info.HasVideo() {
				fmt.Fprintf(out, "Video:     %s %dx%d\n", info.VideoCodec, info.Width, info.Height)
			}
			if info.AudioCodec != "" {
				fmt.Fprintf(out, "Audio:     %s\n", info.AudioCodec)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the probe result as JSON")
	return cmd
}
