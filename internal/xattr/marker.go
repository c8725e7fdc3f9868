package xattr

import (
	"errors"
	"os"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// ReadMarker reads and parses the marker attribute on path. ok is false
// whenever the attribute is absent, unsupported, or malformed — all of
// which are treated identically as "no marker" per spec.md §3.
func ReadMarker(path string, followSymlinks bool) (codec.Marker, bool) {
	raw, ok, err := Get(path, codec.MarkerAttrName, followSymlinks)
	if err != nil || !ok {
		return codec.Marker{}, false
	}
	return codec.ParseMarker(raw)
}

// WriteMarker writes the marker attribute on an open file descriptor
// recording codec c at mtime. EACCES and EPERM are tolerated (returned
// as nil) per spec.md §4.5 WRITE_MARKER, since a marker write failure
// must not fail an otherwise-successful rewrite.
func WriteMarker(fd int, c codec.Codec, mtimeSec, mtimeUsec int64) error {
	value := codec.FormatMarker(codec.Marker{Codec: c, MtimeSec: mtimeSec, MtimeUsec: mtimeUsec})
	err := SetFd(fd, codec.MarkerAttrName, value)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrPermission) {
		return nil
	}
	return err
}
