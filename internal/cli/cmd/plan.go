package cmd

import (
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "plan <video>",
		Short:         "Show the computed bitrate and output without encoding",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PreRunE:       compressPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompress(cmd, args, runMode{PlanOnly: true})
		},
	}
	// Reuse same flags; plan only probes the source
	bindCompressFlags(cmd.Flags())
	if f := cmd.Flags().Lookup("no-ui"); f != nil {
		f.Hidden = true
	}
	return cmd
}
