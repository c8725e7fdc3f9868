package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
)

type fakeAdmin struct{}

func (fakeAdmin) Lookup(string) (dataset.LookupResult, error) {
	return dataset.LookupResult{}, dataset.ErrNotFound
}
func (fakeAdmin) SetCompression(dataset.Name, codec.Codec) error { return nil }
func (fakeAdmin) SyncPool(string) error                          { return nil }

// TestWalkSkipsNonZFSFilesystemsWithoutError exercises the walk on the
// test environment's real (non-ZFS) filesystem: registry.Resolve rejects
// every file at the fsinfo.IsZFS check, so Walk must return an empty,
// error-free result rather than surfacing "not ZFS" as a failure —
// ZFS-dependent acceptance itself is covered by eligibility_test.go.
func TestWalkSkipsNonZFSFilesystemsWithoutError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("payload"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.bin"), []byte("payload2"), 0o644))

	registry := dataset.NewRegistry(nil)
	items, err := Walk(dir, fakeAdmin{}, registry, Config{TargetCodec: codec.Gzip})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWalkReturnsErrorForMissingRoot(t *testing.T) {
	registry := dataset.NewRegistry(nil)
	_, err := Walk(filepath.Join(t.TempDir(), "does-not-exist"), fakeAdmin{}, registry, Config{TargetCodec: codec.Gzip})
	assert.Error(t, err)
}
