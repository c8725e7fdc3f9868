package rewrite

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/zfsctool/zfsctool/internal/throttle"
)

// readWholeFile implements the BUFFER step: it reads the file fully into
// a plain Go buffer, advises the kernel of sequential access on that
// buffer's backing memory (madvise works on any process VM range, not
// only mmap'd regions), and returns a fast xxhash digest taken while
// reading for later verification. When limiter is non-nil, reads are
// throttled to the configured aggregate bandwidth.
func readWholeFile(f *os.File, size int64, limiter *rate.Limiter) ([]byte, uint64, error) {
	buf := make([]byte, size)
	if size > 0 {
		src := throttle.NewReader(context.Background(), f, limiter)
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, 0, fmt.Errorf("read: %w", err)
		}
		if err := unix.Madvise(buf, unix.MADV_SEQUENTIAL); err != nil {
			// advisory only; proceed regardless.
			_ = err
		}
	}
	return buf, xxhash.Sum64(buf), nil
}
