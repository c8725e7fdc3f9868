package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfsctool/zfsctool/internal/fsinfo"
)

func TestRegistryInsertAndLookup(t *testing.T) {
	r := NewRegistry(nil)
	admin := newFakeAdmin()
	s := NewState("tank/a", admin, "lz4", "standard", false, nil)

	_, ok := r.ByFsID(fsinfo.FilesystemId(1))
	assert.False(t, ok)

	r.Insert(fsinfo.FilesystemId(1), s)
	got, ok := r.ByFsID(fsinfo.FilesystemId(1))
	require.True(t, ok)
	assert.Same(t, s, got)

	r.Associate("/mnt/tank/a/file.txt", s)
	got, ok = r.ByPath("/mnt/tank/a/file.txt")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistryClearRestoresAndDrains(t *testing.T) {
	r := NewRegistry(nil)
	admin := newFakeAdmin()
	s := NewState("tank/a", admin, "lz4", "standard", false, nil)
	_, err := s.Acquire("gzip-6")
	require.NoError(t, err)

	r.Insert(fsinfo.FilesystemId(1), s)
	r.Associate("/mnt/tank/a/file.txt", s)

	require.NoError(t, r.Clear())
	assert.Equal(t, admin.currentCodec("tank/a"), s.CurrentCodec())

	_, ok := r.ByFsID(fsinfo.FilesystemId(1))
	assert.False(t, ok, "registry must be drained after Clear")
	_, ok = r.ByPath("/mnt/tank/a/file.txt")
	assert.False(t, ok)
}

func TestRegistryClearSkipsReadOnlyDatasets(t *testing.T) {
	r := NewRegistry(nil)
	admin := newFakeAdmin()
	s := NewState("tank/a", admin, "lz4", "standard", false, nil)
	_, err := s.Acquire("gzip-6")
	require.NoError(t, err)
	s.MarkReadOnly()

	r.Insert(fsinfo.FilesystemId(1), s)

	require.NoError(t, r.Clear())
	// A read-only dataset is left exactly as it was; Clear does not
	// attempt to touch its codec.
	assert.Equal(t, "gzip-6", string(s.CurrentCodec()))
}
