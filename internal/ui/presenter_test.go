package ui

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/jobinfo"
)

// A regular file is never a terminal, so New never selects the live TUI
// in these tests (quiet mode or the plain fallback) — exercising the live
// TUI branch would need a real pty.

func TestPresenterQuietProducesNoOutput(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ui-quiet")
	require.NoError(t, err)
	defer f.Close()

	job := jobinfo.New(codec.LZ4, 0, true, false, false, false)
	p := New(f, 10, true)
	p.Start(job)
	p.Stop()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPresenterPlainWritesOnStop(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ui-plain")
	require.NoError(t, err)
	defer f.Close()

	job := jobinfo.New(codec.LZ4, 0, true, false, false, false)
	job.AddFile(100, 50)

	p := New(f, 10, false)
	assert.False(t, p.tty)
	p.Start(job)
	p.Stop()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
