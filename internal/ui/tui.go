package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zfsctool/zfsctool/internal/jobinfo"
)

const tickInterval = 200 * time.Millisecond

type tickMsg time.Time

type doneMsg struct{}

// tuiModel is the live progress display: a bubbletea program that polls
// job's atomic counters on a tick rather than being pushed events, since
// FileRewriter workers only ever update jobinfo.JobInfo.
type tuiModel struct {
	job      *jobinfo.JobInfo
	total    int
	width    int
	quitting bool
}

func newTUIModel(job *jobinfo.JobInfo, total, width int) tuiModel {
	return tuiModel{job: job, total: total, width: width}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return tick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tick()
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	snap := m.job.Snapshot()
	completed := snap.Rewritten + snap.Skipped + snap.Failed

	barWidth := m.width - 40
	if barWidth < 10 {
		barWidth = 10
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(completed) / float64(m.total)
	}

	return fmt.Sprintf("[%s] %s/%s  rewritten=%s skipped=%s failed=%s  %s\n",
		ProgressBar(pct, barWidth),
		FormatCount(completed), FormatCount(int64(m.total)),
		FormatCount(snap.Rewritten), FormatCount(snap.Skipped), FormatCount(snap.Failed),
		FormatDuration(snap.Elapsed))
}
