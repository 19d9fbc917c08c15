package ui

import "vidshrink/internal/progress"

type jobUpdateMsg struct {
	U progress.Update
}

type jobLogMsg struct {
	L progress.Log
}

type jobResultMsg struct {
	R progress.Result
}

// jobExitedMsg is sent once the job's event stream is closed.
type jobExitedMsg struct{}
