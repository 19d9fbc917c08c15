// Command vidshrink re-encodes a video with ffmpeg so it fits a target size.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	vidshrinkcmd "vidshrink/internal/cli/cmd"
)

func main() {
	// A first interrupt cancels the running encode; its cleanup still runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := vidshrinkcmd.Execute(ctx)
	stop()
	os.Exit(report(err))
}

// report prints err and returns the process exit code for it.
func report(err error) int {
	if err == nil {
		return vidshrinkcmd.ExitOK
	}
	code := vidshrinkcmd.ExitCLIError
	var ee *vidshrinkcmd.ExitError
	if errors.As(err, &ee) {
		code = ee.Code
		err = ee.Err
	}
	switch {
	case code == vidshrinkcmd.ExitCancelled:
		fmt.Fprintln(os.Stderr, "vidshrink: cancelled, no output written")
	case err != nil:
		fmt.Fprintf(os.Stderr, "vidshrink: %v\n", err)
	}
	return code
}
