package zfsadmin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
)

// TestAdmin is the no-op/echo adapter spec.md §4.1 requires whenever
// codec == "test": every mutating call is logged instead of executed.
// Lookups are served from an in-memory table an operator or test seeds
// ahead of time, since there is no real zfs/zpool call to make.
type TestAdmin struct {
	mu       sync.Mutex
	datasets map[string]dataset.LookupResult
	log      []string
}

// NewTestAdmin constructs an empty TestAdmin.
func NewTestAdmin() *TestAdmin {
	return &TestAdmin{datasets: make(map[string]dataset.LookupResult)}
}

// Seed registers the lookup result a future Lookup(path) call should
// return. Lookup answers only for seeded paths and never consults zfs;
// an unseeded path is reported as dataset.ErrNotFound.
func (a *TestAdmin) Seed(path string, result dataset.LookupResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.datasets[path] = result
}

// Lookup returns the seeded result for path.
func (a *TestAdmin) Lookup(path string) (dataset.LookupResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.datasets[path]
	if !ok {
		return dataset.LookupResult{}, dataset.ErrNotFound
	}
	return r, nil
}

// SetCompression logs the would-be command and always succeeds.
func (a *TestAdmin) SetCompression(name dataset.Name, c codec.Codec) error {
	cmd := fmt.Sprintf("echo zfs set compression=%s %q", c, name)
	a.record(cmd)
	slog.Info("zfsadmin(test): would run", "cmd", cmd)
	return nil
}

// SyncPool logs the would-be command and always succeeds.
func (a *TestAdmin) SyncPool(poolName string) error {
	cmd := fmt.Sprintf("echo zpool sync %q", poolName)
	a.record(cmd)
	slog.Info("zfsadmin(test): would run", "cmd", cmd)
	return nil
}

func (a *TestAdmin) record(cmd string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = append(a.log, cmd)
}

// Log returns every command that would have been run, in order.
func (a *TestAdmin) Log() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.log))
	copy(out, a.log)
	return out
}
