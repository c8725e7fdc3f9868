package fsinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSparseDenseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dense.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sparse, err := IsSparse(f, 4096)
	require.NoError(t, err)
	// Some filesystems (notably tmpfs) don't support SEEK_HOLE and
	// IsSparse degrades to "not sparse"; a fully-written file must never
	// report sparse=true where the syscall is supported.
	require.False(t, sparse)
}

func TestIsSparseEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sparse, err := IsSparse(f, 0)
	require.NoError(t, err)
	require.False(t, sparse)
}
