//go:build !linux

package ioengine

import "errors"

// New reports io_uring as unavailable on non-Linux platforms; callers
// fall back to NewFallback.
func New(queueDepth uint32) (Engine, error) {
	return nil, errors.New("ioengine: io_uring is only available on linux")
}
