// Package codec defines the closed set of ZFS compression codecs zfsctool
// understands and the per-file marker attribute format that records which
// codec a file was last rewritten under.
package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// Codec is a symbolic ZFS compression algorithm setting, or the "test"
// dry-run sentinel.
type Codec string

// The closed set of recognized codecs.
const (
	On     Codec = "on"
	Off    Codec = "off"
	Gzip   Codec = "gzip"
	LZ4    Codec = "lz4"
	LZJB   Codec = "lzjb"
	ZLE    Codec = "zle"
	GZIP1  Codec = "gzip-1"
	GZIP2  Codec = "gzip-2"
	GZIP3  Codec = "gzip-3"
	GZIP4  Codec = "gzip-4"
	GZIP5  Codec = "gzip-5"
	GZIP6  Codec = "gzip-6"
	GZIP7  Codec = "gzip-7"
	GZIP8  Codec = "gzip-8"
	GZIP9  Codec = "gzip-9"
	// Test is the dry-run sentinel: every mutating DatasetAdmin call is
	// logged instead of executed.
	Test Codec = "test"
)

var valid = map[Codec]struct{}{
	On: {}, Off: {}, Gzip: {}, LZ4: {}, LZJB: {}, ZLE: {}, Test: {},
	GZIP1: {}, GZIP2: {}, GZIP3: {}, GZIP4: {}, GZIP5: {},
	GZIP6: {}, GZIP7: {}, GZIP8: {}, GZIP9: {},
}

// Valid reports whether c is a member of the closed codec set.
func (c Codec) Valid() bool {
	_, ok := valid[c]
	return ok
}

// IsTest reports whether c is the dry-run sentinel.
func (c Codec) IsTest() bool {
	return c == Test
}

// Parse validates s against the closed codec set.
func Parse(s string) (Codec, error) {
	c := Codec(s)
	if !c.Valid() {
		return "", fmt.Errorf("codec: %q is not one of the recognized codecs", s)
	}
	return c, nil
}

// Marker is the parsed form of the trusted.ZFSCTool:compress extended
// attribute: "<codec>@<mtime_sec>:<mtime_usec>".
type Marker struct {
	Codec     Codec
	MtimeSec  int64
	MtimeUsec int64
}

// FormatMarker renders a Marker in its on-disk attribute form.
func FormatMarker(m Marker) string {
	return fmt.Sprintf("%s@%d:%d", m.Codec, m.MtimeSec, m.MtimeUsec)
}

// ParseMarker parses the marker attribute value. It is recognized as
// present only if it splits into exactly three fields on '@' and ':';
// any other shape is reported as absent (ok=false), never an error, per
// the tolerate-malformed-values contract of the marker attribute. The
// codec field is not checked against the closed set: an unrecognized
// codec name still parses, and callers tolerate it.
func ParseMarker(raw string) (m Marker, ok bool) {
	at := strings.IndexByte(raw, '@')
	if at < 0 {
		return Marker{}, false
	}
	codecPart, rest := raw[:at], raw[at+1:]
	if codecPart == "" {
		return Marker{}, false
	}
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return Marker{}, false
	}
	secPart, usecPart := rest[:colon], rest[colon+1:]

	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return Marker{}, false
	}
	usec, err := strconv.ParseInt(usecPart, 10, 64)
	if err != nil {
		return Marker{}, false
	}

	return Marker{Codec: Codec(codecPart), MtimeSec: sec, MtimeUsec: usec}, true
}

// MarkerAttrName is the extended attribute name carrying the Marker.
const MarkerAttrName = "trusted.ZFSCTool:compress"
