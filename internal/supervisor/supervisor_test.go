package supervisor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
)

type fakeAdmin struct {
	codecs map[dataset.Name]codec.Codec
}

func newFakeAdmin() *fakeAdmin { return &fakeAdmin{codecs: map[dataset.Name]codec.Codec{}} }

func (a *fakeAdmin) Lookup(string) (dataset.LookupResult, error) {
	return dataset.LookupResult{}, dataset.ErrNotFound
}
func (a *fakeAdmin) SetCompression(name dataset.Name, c codec.Codec) error {
	a.codecs[name] = c
	return nil
}
func (a *fakeAdmin) SyncPool(string) error { return nil }

func TestSoftQuitSetsFlagIdempotently(t *testing.T) {
	admin := newFakeAdmin()
	registry := dataset.NewRegistry(nil)
	sup := New(registry)
	sup.Start()
	defer sup.Stop()

	require.False(t, sup.Quitting())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	require.Eventually(t, sup.Quitting, time.Second, 5*time.Millisecond)

	// A second soft-quit signal must not panic or double-log.
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, sup.Quitting())
	_ = admin
}

func TestFinalizeRestoresRegistry(t *testing.T) {
	admin := newFakeAdmin()
	registry := dataset.NewRegistry(nil)
	st := dataset.NewState("tank/data", admin, codec.LZ4, "standard", false, nil)
	_, err := st.Acquire(codec.Gzip)
	require.NoError(t, err)
	registry.Insert(1, st)

	sup := New(registry)
	require.NoError(t, sup.Finalize())
	assert.Equal(t, codec.LZ4, st.CurrentCodec())
}
