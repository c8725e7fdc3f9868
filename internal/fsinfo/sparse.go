package fsinfo

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// IsSparse reports whether the open file fd contains at least one hole
// before its logical end, using SEEK_HOLE. It is used only to emit an
// informational diagnostic before a rewrite materializes the holes (the
// rewrite buffers and rewrites the file's full logical length); it never
// affects Eligibility's accept/reject decision.
//
// Filesystems that don't support SEEK_DATA/SEEK_HOLE report EINVAL, which
// is treated as "not sparse" (unknown, assume dense) rather than an error.
func IsSparse(fd *os.File, size int64) (bool, error) {
	if size == 0 {
		return false, nil
	}

	rawFd := int(fd.Fd())
	holeOffset, err := unix.Seek(rawFd, 0, unix.SEEK_HOLE)
	if err != nil {
		if errors.Is(err, unix.EINVAL) {
			return false, nil
		}
		return false, err
	}
	return holeOffset < size, nil
}
