package pathmatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyChainIncludesEverything(t *testing.T) {
	c := NewChain()
	assert.True(t, c.Empty())
	assert.True(t, c.Match("a/b.txt", false, 0))
}

func TestFirstMatchWins(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("*.log"))
	require.NoError(t, c.AddInclude("keep.log"))

	assert.False(t, c.Match("keep.log", false, 0), "exclude was added first, so it still wins")
}

func TestOrderControlsOutcome(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddInclude("keep.log"))
	require.NoError(t, c.AddExclude("*.log"))

	assert.True(t, c.Match("keep.log", false, 0))
	assert.False(t, c.Match("other.log", false, 0))
}

func TestMatchesBasenameForNestedPaths(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.AddExclude("*.tmp"))
	assert.False(t, c.Match("a/b/c.tmp", false, 0))
}

func TestSizeBounds(t *testing.T) {
	c := NewChain()
	c.SetMinSize(100)
	c.SetMaxSize(1000)
	assert.False(t, c.Match("f", false, 50))
	assert.False(t, c.Match("f", false, 5000))
	assert.True(t, c.Match("f", false, 500))
	assert.True(t, c.Match("dir", true, 0), "size bounds never apply to directories")
}

func TestAddRejectsInvalidPattern(t *testing.T) {
	c := NewChain()
	err := c.AddInclude("[")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules")
	content := "# comment\n\n+ keep.log\n- *.log\nplain.tmp\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c := NewChain()
	require.NoError(t, c.LoadFile(path))

	assert.True(t, c.Match("keep.log", false, 0))
	assert.False(t, c.Match("other.log", false, 0))
	assert.False(t, c.Match("plain.tmp", false, 0))
}

func TestLoadFileMissing(t *testing.T) {
	c := NewChain()
	err := c.LoadFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
