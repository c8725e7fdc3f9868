// Package eligibility implements the isRewritable decision of spec.md
// §4.4: whether a file should be rewritten given its on-disk metadata,
// the dataset's current codec, and the per-file marker attribute.
package eligibility

import (
	"fmt"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// Reason classifies why a file was rejected, or Accepted on success.
// Reasons other than Accepted are the Ineligible taxonomy entry of
// spec.md §7: not an error, logged at high verbosity only.
type Reason int

const (
	Accepted Reason = iota
	NotZFS
	WrongFileType
	ZeroSized
	TooLarge
	InsufficientFreeSpace
	MarkerCurrent
	DatasetCodecCurrent
)

func (r Reason) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case NotZFS:
		return "not on a ZFS filesystem"
	case WrongFileType:
		return "not a regular file (or followable symlink)"
	case ZeroSized:
		return "zero-sized"
	case TooLarge:
		return "exceeds configured max size"
	case InsufficientFreeSpace:
		return "block-rounded size exceeds free space and target codec is off"
	case MarkerCurrent:
		return "marker attribute already records the target codec at this mtime"
	case DatasetCodecCurrent:
		return "dataset already at target codec and no marker to say otherwise"
	default:
		return "unknown"
	}
}

// Input bundles the metadata isRewritable needs. BlockUnit is the unit
// Blocks is expressed in (512 on POSIX stat); Blksize is the file's
// preferred I/O block size used for the free-space rounding rule.
type Input struct {
	IsZFS          bool
	IsRegular      bool
	IsSymlink      bool
	FollowSymlinks bool

	Size    int64
	Blocks  int64 // st_blocks
	Blksize int64 // st_blksize
	BlockUnit int64 // bytes per Blocks unit, 512 unless overridden

	MtimeSec  int64
	MtimeUsec int64

	FreeBytes int64 // dataset-level free space

	MaxSize int64 // 0 = unlimited

	TargetCodec           codec.Codec
	DatasetOriginalCodec  codec.Codec
	AllowReCompress       bool

	HasMarker bool
	Marker    codec.Marker
}

// IsRewritable evaluates the rules of spec.md §4.4 in order.
func IsRewritable(in Input) (bool, Reason) {
	// Rule 1: filesystem must be ZFS; file must be regular, or a
	// symlink when following is enabled.
	if !in.IsZFS {
		return false, NotZFS
	}
	if !in.IsRegular && !(in.IsSymlink && in.FollowSymlinks) {
		return false, WrongFileType
	}

	// Rule 2: zero-sized files are rejected.
	if in.Size == 0 {
		return false, ZeroSized
	}

	// Rule 3: maxSize, when set, rejects files strictly larger than it.
	// Files exactly equal to maxSize are accepted.
	if in.MaxSize > 0 && in.Size > in.MaxSize {
		return false, TooLarge
	}

	// Rule 4: when rounding size up to blksize would exceed free space
	// and the target codec is "off" (which cannot shrink the file),
	// reject with a diagnostic.
	if in.TargetCodec == codec.Off {
		rounded := roundUp(in.Size, in.Blksize)
		if rounded > in.FreeBytes {
			return false, InsufficientFreeSpace
		}
	}

	// Rule 5: consult the marker attribute.
	blockUnit := in.BlockUnit
	if blockUnit == 0 {
		blockUnit = 512
	}
	if in.HasMarker {
		accept := in.Marker.Codec != in.TargetCodec ||
			in.AllowReCompress ||
			in.Marker.MtimeSec != in.MtimeSec ||
			in.Marker.MtimeUsec != in.MtimeUsec
		if !accept {
			return false, MarkerCurrent
		}
		return true, Accepted
	}

	accept := in.DatasetOriginalCodec != in.TargetCodec ||
		in.AllowReCompress ||
		(in.TargetCodec == codec.Off && in.Blocks*blockUnit < in.Size)
	if !accept {
		return false, DatasetCodecCurrent
	}
	return true, Accepted
}

func roundUp(size, blksize int64) int64 {
	if blksize <= 0 {
		return size
	}
	if size%blksize == 0 {
		return size
	}
	return (size/blksize + 1) * blksize
}

// Diagnostic formats a human-readable rejection message, mirroring the
// original tool's "Skipping '%s' because..." diagnostics.
func Diagnostic(path string, r Reason) string {
	return fmt.Sprintf("skipping %s: %s", path, r)
}
