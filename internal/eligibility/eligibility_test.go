package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zfsctool/zfsctool/internal/codec"
)

func baseInput() Input {
	return Input{
		IsZFS:                true,
		IsRegular:             true,
		Size:                  1024,
		Blocks:                2, // 2*512 = 1024
		Blksize:               512,
		FreeBytes:             1 << 30,
		TargetCodec:           codec.GZIP6,
		DatasetOriginalCodec:  codec.LZ4,
	}
}

func TestRejectsNonZFS(t *testing.T) {
	in := baseInput()
	in.IsZFS = false
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, NotZFS, reason)
}

func TestRejectsWrongFileType(t *testing.T) {
	in := baseInput()
	in.IsRegular = false
	in.IsSymlink = true
	in.FollowSymlinks = false
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, WrongFileType, reason)
}

func TestAcceptsSymlinkWhenFollowing(t *testing.T) {
	in := baseInput()
	in.IsRegular = false
	in.IsSymlink = true
	in.FollowSymlinks = true
	ok, _ := IsRewritable(in)
	assert.True(t, ok)
}

func TestRejectsZeroSized(t *testing.T) {
	in := baseInput()
	in.Size = 0
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, ZeroSized, reason)
}

func TestMaxSizeBoundary(t *testing.T) {
	in := baseInput()
	in.MaxSize = 1024
	ok, _ := IsRewritable(in)
	assert.True(t, ok, "file exactly at maxSize must be accepted")

	in.Size = 1025
	in.Blocks = 3
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, TooLarge, reason)
}

func TestInsufficientFreeSpaceOnlyForOffCodec(t *testing.T) {
	in := baseInput()
	in.TargetCodec = codec.Off
	in.Size = 1 << 31
	in.Blksize = 1 << 20
	in.FreeBytes = 1024 // far less than the block-rounded size
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, InsufficientFreeSpace, reason)

	// Same starvation but a non-off target codec is not rejected by this
	// rule (compression can shrink the result).
	in.TargetCodec = codec.GZIP6
	ok, reason = IsRewritable(in)
	assert.True(t, ok, "rule 4 only applies when target codec is off")
	_ = reason
}

func TestMarkerCurrentRejectsIdempotentRerun(t *testing.T) {
	in := baseInput()
	in.HasMarker = true
	in.MtimeSec, in.MtimeUsec = 100, 200
	in.Marker = codec.Marker{Codec: codec.GZIP6, MtimeSec: 100, MtimeUsec: 200}

	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, MarkerCurrent, reason)
}

func TestMarkerStaleCodecIsAccepted(t *testing.T) {
	in := baseInput()
	in.HasMarker = true
	in.MtimeSec, in.MtimeUsec = 100, 200
	in.Marker = codec.Marker{Codec: codec.LZ4, MtimeSec: 100, MtimeUsec: 200}

	ok, _ := IsRewritable(in)
	assert.True(t, ok)
}

func TestMarkerMtimeChangedIsAccepted(t *testing.T) {
	in := baseInput()
	in.HasMarker = true
	in.MtimeSec, in.MtimeUsec = 999, 0
	in.Marker = codec.Marker{Codec: codec.GZIP6, MtimeSec: 100, MtimeUsec: 200}

	ok, _ := IsRewritable(in)
	assert.True(t, ok, "external rewrite invalidates the marker")
}

func TestAllowReCompressForcesAcceptDespiteCurrentMarker(t *testing.T) {
	in := baseInput()
	in.HasMarker = true
	in.AllowReCompress = true
	in.MtimeSec, in.MtimeUsec = 100, 200
	in.Marker = codec.Marker{Codec: codec.GZIP6, MtimeSec: 100, MtimeUsec: 200}

	ok, _ := IsRewritable(in)
	assert.True(t, ok)
}

func TestNoMarkerDatasetAlreadyAtTargetRejects(t *testing.T) {
	in := baseInput()
	in.DatasetOriginalCodec = codec.GZIP6 // already at target
	ok, reason := IsRewritable(in)
	assert.False(t, ok)
	assert.Equal(t, DatasetCodecCurrent, reason)
}

func TestNoMarkerOffTargetSparseFileAccepted(t *testing.T) {
	in := baseInput()
	in.DatasetOriginalCodec = codec.Off
	in.TargetCodec = codec.Off
	in.Size = 4096
	in.Blocks = 2 // 2*512 = 1024 < 4096: sparse/already-compressed on disk
	in.FreeBytes = 1 << 30
	ok, _ := IsRewritable(in)
	assert.True(t, ok)
}
