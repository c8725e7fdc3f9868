//go:build darwin

package fsinfo

import (
	"bytes"
	"fmt"

	"golang.org/x/sys/unix"
)

// FilesystemId is an opaque, equality-comparable, hashable identifier for
// a filesystem, derived from the fsid returned by a statfs(2)-equivalent
// query.
type FilesystemId uint64

// Info is the result of a filesystem-info query for one path.
type Info struct {
	ID        FilesystemId
	IsZFS     bool
	BlockSize int64
	FreeBytes int64
}

// Query performs the filesystem-info query for path, identifying ZFS by
// the mount's reported filesystem type name (darwin has no stable
// f_fssubtype constant exposed via golang.org/x/sys/unix).
func Query(path string) (Info, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Info{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	name := st.Fstypename[:]
	end := bytes.IndexByte(name, 0)
	if end < 0 {
		end = len(name)
	}
	typeName := string(toByteSlice(name[:end]))

	id := fsidToUint64(st.Fsid)
	return Info{
		ID:        FilesystemId(id),
		IsZFS:     typeName == "zfs",
		BlockSize: int64(st.Bsize),
		FreeBytes: int64(st.Bfree) * int64(st.Bsize),
	}, nil
}

func toByteSlice(s []int8) []byte {
	b := make([]byte, len(s))
	for i, c := range s {
		b[i] = byte(c)
	}
	return b
}

func fsidToUint64(fsid unix.Fsid) uint64 {
	var lo, hi uint32
	if len(fsid.Val) >= 2 {
		lo = uint32(fsid.Val[0])
		hi = uint32(fsid.Val[1])
	}
	return uint64(hi)<<32 | uint64(lo)
}
