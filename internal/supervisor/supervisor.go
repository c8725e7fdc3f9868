// Package supervisor installs the process-wide signal handling of
// spec.md §4.7: HUP/INT/TERM request a soft quit that lets in-flight
// rewrites finish CLEANUP before dataset codecs are restored; BUS/SEGV
// trigger an immediate hard quit with no restoration attempt, since a
// memory-corruption signal leaves program state untrustworthy; XCPU and
// XFSZ are otherwise-fatal-by-default signals we explicitly no-op so a
// long rewrite isn't killed mid-CLEANUP by a resource-limit signal.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/zfsctool/zfsctool/internal/dataset"
)

// Supervisor owns the process quit flag and the signal handling that
// sets it.
type Supervisor struct {
	registry *dataset.Registry

	quit     atomic.Bool
	hardQuit atomic.Bool

	sigCh chan os.Signal
	done  chan struct{}
}

// New constructs a Supervisor that will restore registry's datasets once
// a soft quit has been observed and the caller's workers have joined.
func New(registry *dataset.Registry) *Supervisor {
	return &Supervisor{
		registry: registry,
		sigCh:    make(chan os.Signal, 8),
		done:     make(chan struct{}),
	}
}

// Quitting reports the soft-quit flag. FileRewriter and WorkerPool poll
// this between files and before starting new work.
func (s *Supervisor) Quitting() bool { return s.quit.Load() }

// Start installs the signal handlers and begins processing them in the
// background. Call Stop when the run completes normally.
func (s *Supervisor) Start() {
	signal.Notify(s.sigCh,
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM,
		syscall.SIGBUS, syscall.SIGSEGV,
		syscall.SIGXCPU, syscall.SIGXFSZ,
	)
	go s.loop()
}

// Stop uninstalls the signal handlers and halts the background loop.
func (s *Supervisor) Stop() {
	signal.Stop(s.sigCh)
	close(s.done)
}

func (s *Supervisor) loop() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.sigCh:
			switch sig {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM:
				s.requestSoftQuit(sig)
			case syscall.SIGBUS, syscall.SIGSEGV:
				s.hardQuit.Store(true)
				// Avoid slog's formatting machinery here: the process may be
				// in a partially corrupted state, so write directly and exit.
				fmt.Fprintf(os.Stderr, "zfsctool: fatal signal %s, exiting without dataset restoration\n", sig)
				os.Exit(2)
			case syscall.SIGXCPU, syscall.SIGXFSZ:
				// no-op: let an in-flight rewrite's CLEANUP step run its course.
			}
		}
	}
}

func (s *Supervisor) requestSoftQuit(sig os.Signal) {
	if !s.quit.CompareAndSwap(false, true) {
		return
	}
	slog.Warn("received signal, requesting soft quit", "signal", sig.String())
}

// HardQuit reports whether a hard-quit signal was observed. Present
// mainly for tests; in normal operation the process has already exited
// by the time anything could observe it.
func (s *Supervisor) HardQuit() bool { return s.hardQuit.Load() }

// Finalize runs DatasetRegistry.clear() (spec.md §4.7): called once the
// caller's WorkerPool.Run has returned (its join is strict), so no
// worker is still touching a dataset's State.
func (s *Supervisor) Finalize() error {
	return s.registry.Clear()
}
