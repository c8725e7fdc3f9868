package ioengine

import "golang.org/x/sys/unix"

// fallbackEngine writes via a plain pwrite(2) loop. It is always
// available and is what non-Linux builds, and Linux builds where
// io_uring setup fails, use.
type fallbackEngine struct{}

// NewFallback returns the always-available pwrite-based Engine.
func NewFallback() Engine { return &fallbackEngine{} }

func (fallbackEngine) WriteFile(fd int, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Pwrite(fd, buf[total:], int64(total))
		if n > 0 {
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

func (fallbackEngine) Close() error { return nil }
