package ui

import (
	"errors"
	"fmt"
	"strings"

	"vidshrink/internal/pipeline"
	"vidshrink/internal/progress"
	"vidshrink/internal/util/format"
)

const logTail = 12

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("vidshrink")
	files := m.styles.JobTitle.Render(fmt.Sprintf("%s → %s", truncate(m.info.Source, 40), truncate(m.info.Dest, 40)))
	keys := "q: cancel • l: logs"
	if m.exited {
		keys = "q: quit"
	}
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Source: %s • Target: %s • %s",
		format.HumanizeBytes(m.info.SourceBytes), format.HumanizeBytes(m.info.TargetBytes), keys))
	return title + "  " + files + "\n" + sub
}

func (m Model) viewJob() string {
	js := m.job
	stageStyle := m.styles.JobInfo
	switch js.stage {
	case progress.StageValidating, progress.StageProbing, progress.StageAnalyzing:
		stageStyle = m.styles.StagePrep
	case progress.StageEncoding, progress.StageCopying:
		stageStyle = m.styles.StageEnc
	case progress.StageRetrying:
		stageStyle = m.styles.StageRtry
	case progress.StageCompleted:
		stageStyle = m.styles.Success
	case progress.StageCancelled:
		stageStyle = m.styles.Warning
	case progress.StageError:
		stageStyle = m.styles.Error
	}

	line1 := stageStyle.Render(string(js.stage))
	if js.attempt > 0 {
		line1 += m.styles.Faint.Render(fmt.Sprintf("  attempt %d", js.attempt+1))
	}

	var bar string
	switch {
	case js.percent >= 0 && js.percent <= 100:
		bar = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
	case js.done && js.err == nil:
		bar = m.styles.Success.Render("✓ done")
	case js.stage == progress.StageCancelled:
		bar = m.styles.Warning.Render("■ cancelled")
	case js.err != nil:
		bar = m.styles.Error.Render("✗ error")
	default:
		bar = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	var details []string
	if js.bytes > 0 {
		details = append(details, format.HumanizeBytes(js.bytes))
	}
	if js.speed != "" {
		details = append(details, js.speed)
	}
	if js.eta != "" {
		details = append(details, "ETA "+js.eta)
	}
	line3 := m.styles.JobInfo.Render(js.status)
	if len(details) > 0 {
		line3 += m.styles.Faint.Render("  " + strings.Join(details, " • "))
	}
	return m.styles.Box.Render(line1 + "\n" + bar + "\n" + line3)
}

func (m Model) viewLog() string {
	lines := m.job.logsRing
	n := logTail
	if m.height > 0 {
		n = max(3, m.height-12)
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 0 {
		return m.styles.LogBox.Render(m.styles.Faint.Render("(no log output yet)"))
	}
	width := m.width - 4
	out := make([]string, len(lines))
	for i, l := range lines {
		if width > 0 {
			l = truncate(l, width)
		}
		out[i] = l
	}
	return m.styles.LogBox.Render(m.styles.Faint.Render(strings.Join(out, "\n")))
}

func (m Model) viewSummary() string {
	js := m.job
	if !js.done {
		return ""
	}
	var b strings.Builder
	switch {
	case js.err == nil:
		ratio := 0.0
		if js.bytes > 0 {
			ratio = float64(m.info.SourceBytes) / float64(js.bytes)
		}
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ %s", js.outputPath)))
		b.WriteString("\n")
		b.WriteString(m.styles.JobInfo.Render(fmt.Sprintf("  %s → %s (%.2fx smaller)",
			format.HumanizeBytes(m.info.SourceBytes), format.HumanizeBytes(js.bytes), ratio)))
		if js.warning != nil {
			b.WriteString("\n")
			b.WriteString(m.styles.Warning.Render("! " + js.warning.Error()))
		}
	case errors.Is(js.err, pipeline.ErrCancelled):
		b.WriteString(m.styles.Warning.Render("Cancelled. No output was written."))
	default:
		b.WriteString(m.styles.Error.Render("✗ " + js.err.Error()))
		var f *pipeline.Failure
		if errors.As(js.err, &f) && f.Diagnostic != "" && !m.showLog {
			b.WriteString("\n")
			b.WriteString(m.styles.LogBox.Render(m.styles.Faint.Render(f.Diagnostic)))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
