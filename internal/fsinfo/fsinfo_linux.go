//go:build linux

// Package fsinfo derives a FilesystemId from a path's filesystem-info
// query and reports whether that filesystem is ZFS, mirroring the
// statfs-based checks in the original tool.
package fsinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// zfsSuperMagic is Linux's f_type value for a ZFS mount (S_MAGIC_ZFS).
const zfsSuperMagic = 0x2FC12FC1

// FilesystemId is an opaque, equality-comparable, hashable identifier for
// a filesystem, derived from the fsid returned by a statfs(2)-equivalent
// query.
type FilesystemId uint64

// Info is the result of a filesystem-info query for one path.
type Info struct {
	ID          FilesystemId
	IsZFS       bool
	BlockSize   int64 // f_bsize
	FreeBytes   int64 // f_bfree * f_bsize
}

// Query performs the filesystem-info query for path (spec.md §4.2 step 1):
// it returns the FilesystemId and whether the filesystem is ZFS, along
// with the block size and free space used by Eligibility's free-space
// rule.
func Query(path string) (Info, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Info{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	id := fsidToUint64(st.Fsid)
	return Info{
		ID:        FilesystemId(id),
		IsZFS:     int64(st.Type) == zfsSuperMagic,
		BlockSize: int64(st.Bsize),
		FreeBytes: int64(st.Bfree) * int64(st.Bsize),
	}, nil
}

// fsidToUint64 packs the two 32-bit halves of a statfs fsid into one
// 64-bit opaque value, matching the original tool's mkFSId_t.
func fsidToUint64(fsid unix.Fsid) uint64 {
	var lo, hi uint32
	if len(fsid.Val) >= 2 {
		lo = uint32(fsid.Val[0])
		hi = uint32(fsid.Val[1])
	}
	return uint64(hi)<<32 | uint64(lo)
}
