// Package ui presents run progress: a live bubbletea display when
// stdout is an attached terminal, a periodic plain-text line otherwise,
// or nothing at all in quiet mode. Grounded on the teacher's own
// internal/ui presenter split (hud/plain/quiet behind one NewPresenter
// factory keyed on IsTTY/Quiet), adapted from the teacher's
// event-channel push model to a poll-on-tick model: FileRewriter
// workers only ever update jobinfo.JobInfo's atomic counters, so the
// presenter reads a Snapshot periodically instead of consuming events.
package ui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zfsctool/zfsctool/internal/jobinfo"
)

const plainInterval = 5 * time.Second

// Presenter drives periodic progress rendering for one run.
type Presenter struct {
	out   *os.File
	total int
	quiet bool
	tty   bool

	prog      *tea.Program
	plainStop chan struct{}
	done      chan struct{}
}

// New selects a presentation mode for out: quiet suppresses all
// progress output; otherwise a live TUI is used when out is an
// attached terminal, and a plain periodic line is used otherwise
// (piped output, redirected to a file, or a dumb terminal).
func New(out *os.File, total int, quiet bool) *Presenter {
	return &Presenter{
		out:   out,
		total: total,
		quiet: quiet,
		tty:   !quiet && IsTTY(out.Fd()),
	}
}

// Start begins rendering progress for job until Stop is called.
func (p *Presenter) Start(job *jobinfo.JobInfo) {
	p.done = make(chan struct{})

	switch {
	case p.quiet:
		close(p.done)
	case p.tty:
		width := TermWidth(p.out.Fd())
		model := newTUIModel(job, p.total, width)
		p.prog = tea.NewProgram(model, tea.WithOutput(p.out))
		go func() {
			_, _ = p.prog.Run()
			close(p.done)
		}()
	default:
		p.plainStop = make(chan struct{})
		go p.runPlain(job)
	}
}

func (p *Presenter) runPlain(job *jobinfo.JobInfo) {
	defer close(p.done)
	ticker := time.NewTicker(plainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.printPlain(job.Snapshot())
		case <-p.plainStop:
			p.printPlain(job.Snapshot())
			return
		}
	}
}

func (p *Presenter) printPlain(snap jobinfo.Snapshot) {
	completed := snap.Rewritten + snap.Skipped + snap.Failed
	fmt.Fprintf(p.out, "progress: %s/%s files  rewritten=%s skipped=%s failed=%s  %s saved %s  %s\n",
		FormatCount(completed), FormatCount(int64(p.total)),
		FormatCount(snap.Rewritten), FormatCount(snap.Skipped), FormatCount(snap.Failed),
		FormatBytes(snap.UncompressedBytes-snap.CompressedBytes), FormatBytes(snap.UncompressedBytes),
		FormatDuration(snap.Elapsed))
}

// Stop halts rendering and waits for it to exit cleanly, printing one
// final snapshot.
func (p *Presenter) Stop() {
	if p.done == nil {
		return
	}
	switch {
	case p.quiet:
	case p.tty:
		p.prog.Send(doneMsg{})
	default:
		close(p.plainStop)
	}
	<-p.done
}
