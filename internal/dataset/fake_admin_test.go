package dataset

import (
	"fmt"
	"sync"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// fakeAdmin is a DatasetAdmin test double that never shells out to zfs/
// zpool; it records every call and lets tests inject failures.
type fakeAdmin struct {
	mu sync.Mutex

	datasets map[string]LookupResult // path -> lookup result
	codecs   map[Name]codec.Codec    // live "current" codec per dataset

	setCalls  []setCall
	failNames map[Name]error // dataset name -> error to return from SetCompression
}

type setCall struct {
	Name  Name
	Codec codec.Codec
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		datasets:  make(map[string]LookupResult),
		codecs:    make(map[Name]codec.Codec),
		failNames: make(map[Name]error),
	}
}

func (f *fakeAdmin) Lookup(path string) (LookupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.datasets[path]
	if !ok {
		return LookupResult{}, ErrNotFound
	}
	if _, seen := f.codecs[r.Dataset]; !seen {
		f.codecs[r.Dataset] = r.Codec
	}
	return r, nil
}

func (f *fakeAdmin) SetCompression(name Name, c codec.Codec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failNames[name]; ok {
		return err
	}
	f.setCalls = append(f.setCalls, setCall{Name: name, Codec: c})
	f.codecs[name] = c
	return nil
}

func (f *fakeAdmin) SyncPool(string) error { return nil }

func (f *fakeAdmin) currentCodec(name Name) codec.Codec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codecs[name]
}

func (f *fakeAdmin) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.setCalls)
}

var errSimulatedENOSPC = fmt.Errorf("simulated ENOSPC")
