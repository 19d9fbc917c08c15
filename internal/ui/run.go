package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"vidshrink/internal/model"
	"vidshrink/internal/pipeline"
)

// Run shows job in the terminal until it exits and returns its outcome.
// Quitting the TUI cancels the job and still waits for its cleanup.
func Run(ctx context.Context, job *pipeline.Job, info Info, opts ...tea.ProgramOption) (model.FinalResult, error) {
	m := NewModel(job, info)
	prog := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	_, err := prog.Run()
	if err != nil {
		job.Cancel()
	}
	res, jerr := job.Wait()
	if err != nil && ctx.Err() == nil {
		return res, fmt.Errorf("tui: %w", err)
	}
	return res, jerr
}
