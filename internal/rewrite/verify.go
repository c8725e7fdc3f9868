package rewrite

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// verify implements the VERIFY step: it maps the just-written file back
// in and compares it against the buffer written during BUFFER. A cheap
// xxhash digest catches the common case (a torn or truncated write)
// quickly; only on a match does it pay for an authoritative blake3
// comparison of the full contents, guarding against an xxhash collision.
func (r *Rewriter) verify(path string, buf []byte, bufDigest uint64) error {
	if len(buf) == 0 {
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("verify: stat: %w", err)
		}
		if fi.Size() != 0 {
			return fmt.Errorf("verify: expected empty file, got %d bytes", fi.Size())
		}
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("verify: open: %w", err)
	}
	defer f.Close()

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("verify: mmap: %w", err)
	}
	defer mapped.Unmap()

	if err := unix.Madvise(mapped, unix.MADV_SEQUENTIAL); err != nil {
		_ = err // advisory only
	}

	if xxhash.Sum64(mapped) != bufDigest {
		return fmt.Errorf("verify: xxhash mismatch for %s", path)
	}

	wantDigest := blake3.Sum256(buf)
	gotDigest := blake3.Sum256(mapped)
	if !bytes.Equal(wantDigest[:], gotDigest[:]) {
		return fmt.Errorf("verify: blake3 mismatch for %s", path)
	}
	return nil
}
