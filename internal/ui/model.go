package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"vidshrink/internal/pipeline"
	"vidshrink/internal/progress"
	"vidshrink/internal/util/format"
)

// Handle is the part of a running job the TUI needs. *pipeline.Job
// satisfies it.
type Handle interface {
	ID() string
	Events() <-chan progress.Event
	Cancel()
}

// Info describes the job for the header and summary.
type Info struct {
	Source      string
	Dest        string
	SourceBytes int64
	TargetBytes int64
}

type Model struct {
	handle Handle
	info   Info
	job    *jobState

	showLog    bool
	cancelling bool
	exited     bool

	// UI
	width, height int
	styles        Styles
}

func NewModel(h Handle, info Info) Model {
	sty := defaultStyles()
	js := newJobState(h.ID(), sty)
	return Model{
		handle: h,
		info:   info,
		job:    &js,
		styles: sty,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.job.spinner.Tick, m.listenEventsCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	js := m.job
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.exited {
				return m, tea.Quit
			}
			// Quit only after the job has cleaned up and closed its stream.
			if !m.cancelling {
				m.cancelling = true
				js.status = "Cancelling, removing partial output"
				m.handle.Cancel()
			}
			return m, nil
		case "l":
			m.showLog = !m.showLog
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case jobUpdateMsg:
		m.applyUpdate(msg.U)
		return m, m.listenEventsCmd()

	case jobLogMsg:
		js.appendLog(strings.TrimRight(msg.L.Line, "\r\n"))
		return m, m.listenEventsCmd()

	case jobResultMsg:
		m.applyResult(msg.R)
		return m, m.listenEventsCmd()

	case jobExitedMsg:
		m.exited = true
		js.done = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	js.spinner, cmd = js.spinner.Update(msg)
	return m, cmd
}

func (m Model) applyUpdate(u progress.Update) {
	js := m.job
	js.stage = u.Stage
	js.attempt = u.Attempt
	js.percent = u.Percent
	if u.Message != "" && !m.cancelling {
		js.status = u.Message
	}
	if u.Bytes != nil {
		js.bytes = *u.Bytes
	}
	js.speed, js.eta = "", ""
	if u.Speed != nil {
		js.speed = *u.Speed
	}
	if u.ETA != nil {
		js.eta = format.Duration(*u.ETA)
	}
}

func (m Model) applyResult(r progress.Result) {
	js := m.job
	js.done = true
	js.err = r.Err
	js.warning = r.Warning
	switch {
	case r.Err == nil:
		js.stage = progress.StageCompleted
		js.percent = 100
		js.outputPath = r.OutputPath
		js.bytes = r.Bytes
		js.status = fmt.Sprintf("Saved: %s (%s)", filepath.Base(r.OutputPath), format.HumanizeBytes(r.Bytes))
	case errors.Is(r.Err, pipeline.ErrCancelled):
		js.stage = progress.StageCancelled
		js.percent = -1
		js.status = "Cancelled"
	default:
		js.stage = progress.StageError
		js.percent = -1
		js.status = r.Err.Error()
	}
}

func (m Model) View() string {
	parts := []string{m.viewHeader(), m.viewJob()}
	if m.showLog {
		parts = append(parts, m.viewLog())
	}
	if s := m.viewSummary(); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func (m Model) listenEventsCmd() tea.Cmd {
	ch := m.handle.Events()
	return func() tea.Msg {
		for ev := range ch {
			switch e := ev.(type) {
			case progress.Update:
				return jobUpdateMsg{U: e}
			case progress.Log:
				return jobLogMsg{L: e}
			case progress.Result:
				return jobResultMsg{R: e}
			}
		}
		return jobExitedMsg{}
	}
}
