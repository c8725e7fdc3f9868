// Package sizeparse parses human-readable byte sizes ("1.5G", "500K")
// used by --max-size and --bwlimit.
package sizeparse

import (
	"fmt"
	"strconv"
	"strings"
)

// unit is one recognized suffix, checked longest-prefix-of-the-tail
// first so multi-letter suffixes never get clipped by a shorter one.
type unit struct {
	suffix string
	factor float64
}

var units = []unit{
	{"TIB", 1 << 40},
	{"GIB", 1 << 30},
	{"MIB", 1 << 20},
	{"KIB", 1 << 10},
	{"T", 1 << 40},
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
	{"B", 1},
}

// Parse converts a human-readable size such as "500K" or "1.5G" into a
// byte count. Sizes are powers of 1024; suffixes are case-insensitive
// and fractional values (e.g. "1.5G") are always accepted.
func Parse(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(trimmed)

	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		numStr := strings.TrimSpace(trimmed[:len(trimmed)-len(u.suffix)])
		if numStr == "" {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		return int64(f * u.factor), nil
	}

	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(f), nil
}
