// Package throttle provides optional bandwidth limiting for the BUFFER
// and TRUNCATE_WRITE steps, shared across every worker via one
// *rate.Limiter so the aggregate throughput — not each worker
// individually — is capped.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewLimiter builds a limiter capped to bytesPerSec, with a burst sized
// to let one natural read/write chunk through without blocking
// unnecessarily on small I/O.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	const defaultBurst = 1 << 20 // 1 MiB
	burst := defaultBurst
	if bytesPerSec > 0 && bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// Reader wraps r so that reads are throttled by limiter.
type Reader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// NewReader wraps r with limiter. If limiter is nil, reads pass through
// untouched.
func NewReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &Reader{r: r, limiter: limiter, ctx: ctx}
}

func (tr *Reader) Read(p []byte) (int, error) {
	// rate.Limiter.WaitN rejects any request larger than the limiter's
	// burst, and a single Read on a regular file routinely fills all of
	// p in one syscall. Cap the slice we hand to the underlying reader
	// so the eventual WaitN call is always within burst.
	if burst := tr.limiter.Burst(); burst > 0 && len(p) > burst {
		p = p[:burst]
	}
	n, err := tr.r.Read(p)
	if n > 0 {
		if waitErr := tr.limiter.WaitN(tr.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

// Writer wraps w so that writes are throttled by limiter.
type Writer struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// NewWriter wraps w with limiter. If limiter is nil, writes pass through
// untouched.
func NewWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &Writer{w: w, limiter: limiter, ctx: ctx}
}

func (tw *Writer) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if burst := tw.limiter.Burst(); burst > 0 && len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := tw.limiter.WaitN(tw.ctx, len(chunk)); err != nil {
			return total, err
		}
		n, err := tw.w.Write(chunk)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(chunk) {
			return total, io.ErrShortWrite
		}
		p = p[len(chunk):]
	}
	return total, nil
}

// WaitBytes reserves n bytes from limiter, split into pieces no larger
// than limiter's burst so a single large reservation never exceeds
// WaitN's "request larger than burst" error. Used where the caller
// writes or reads its own buffer and only needs throttling to space the
// calls out, not a full Reader/Writer wrapper.
func WaitBytes(ctx context.Context, limiter *rate.Limiter, n int) error {
	if limiter == nil || n <= 0 {
		return nil
	}
	burst := limiter.Burst()
	for n > 0 {
		chunk := n
		if burst > 0 && chunk > burst {
			chunk = burst
		}
		if err := limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
