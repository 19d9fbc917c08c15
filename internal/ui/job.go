package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"vidshrink/internal/progress"
)

const maxLogLines = 500

type jobState struct {
	id      string
	stage   progress.Stage
	status  string
	attempt int
	err     error
	warning error
	done    bool

	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown
	speed      string
	eta        string

	spinner spinner.Model
	bar     bubblesprogress.Model

	logsRing []string
}

func newJobState(id string, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		id:      id,
		stage:   progress.StageValidating,
		status:  "Starting",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}

func (js *jobState) appendLog(line string) {
	if len(js.logsRing) >= maxLogLines {
		js.logsRing = js.logsRing[1:]
	}
	js.logsRing = append(js.logsRing, line)
}
