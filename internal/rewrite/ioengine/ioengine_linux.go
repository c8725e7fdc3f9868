//go:build linux

package ioengine

import (
	"fmt"

	"github.com/iceber/iouring-go"
)

// uringEngine submits writes through a shared io_uring instance instead
// of a blocking pwrite syscall, so a worker's TRUNCATE_WRITE step yields
// the OS thread while the kernel completes the I/O.
type uringEngine struct {
	ring *iouring.IOURing
}

// New constructs an io_uring-backed Engine with the given submission
// queue depth. It returns an error if the running kernel doesn't support
// io_uring; callers should fall back to NewFallback in that case.
func New(queueDepth uint32) (Engine, error) {
	ring, err := iouring.New(uint(queueDepth))
	if err != nil {
		return nil, fmt.Errorf("ioengine: io_uring unavailable: %w", err)
	}
	return &uringEngine{ring: ring}, nil
}

func (e *uringEngine) WriteFile(fd int, buf []byte) (int, error) {
	resultCh := make(chan iouring.Result, 1)
	if _, err := e.ring.SubmitRequest(iouring.Writev(fd, [][]byte{buf}), resultCh); err != nil {
		return 0, fmt.Errorf("ioengine: submit write: %w", err)
	}
	result := <-resultCh
	n, err := result.ReturnInt()
	if err != nil {
		return n, fmt.Errorf("ioengine: write completion: %w", err)
	}
	return n, nil
}

func (e *uringEngine) Close() error {
	e.ring.Close()
	return nil
}
