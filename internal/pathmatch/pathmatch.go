// Package pathmatch provides an ordered include/exclude rule chain for
// deciding whether a scanned path should be considered for rewrite.
// Unlike a full rsync-style filter engine, it matches purely with
// path/filepath's shell-glob semantics against both the full relative
// path and the basename; size filtering is a separate, simpler concern
// layered on top (eligibility.Input.MaxSize already owns file-size
// rejection, so the size fields here only gate the rare case a caller
// wants size-based include/exclude ahead of that).
package pathmatch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rule is one include or exclude pattern in CLI/file order.
type rule struct {
	pattern string
	include bool
}

// Chain holds an ordered list of rules; the first matching rule wins.
type Chain struct {
	rules   []rule
	minSize int64
	maxSize int64
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// AddInclude appends an include rule for pattern.
func (c *Chain) AddInclude(pattern string) error {
	return c.add(pattern, true)
}

// AddExclude appends an exclude rule for pattern.
func (c *Chain) AddExclude(pattern string) error {
	return c.add(pattern, false)
}

func (c *Chain) add(pattern string, include bool) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	c.rules = append(c.rules, rule{pattern: pattern, include: include})
	return nil
}

// SetMinSize sets the minimum size a regular file must have to match.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize sets the maximum size a regular file may have to match.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain carries no rules and no size bounds.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Match reports whether relPath should be included. Rules are evaluated
// in the order they were added; the first pattern that matches either
// the full relative path or its basename decides the outcome. No match
// defaults to included.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}

	base := filepath.Base(relPath)
	for _, r := range c.rules {
		if ok, _ := filepath.Match(r.pattern, relPath); ok {
			return r.include
		}
		if ok, _ := filepath.Match(r.pattern, base); ok {
			return r.include
		}
	}
	return true
}

// LoadFile reads include/exclude rules from path, one per line:
//
//	+ pattern   include
//	- pattern   exclude
//	pattern     exclude (rsync default for unprefixed lines)
//	# comment, blank line skipped
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		include := false
		pattern := line
		switch {
		case strings.HasPrefix(line, "+ "):
			include = true
			pattern = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "- "):
			pattern = strings.TrimSpace(line[2:])
		}

		var addErr error
		if include {
			addErr = c.AddInclude(pattern)
		} else {
			addErr = c.AddExclude(pattern)
		}
		if addErr != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, addErr)
		}
	}
	return scanner.Err()
}
