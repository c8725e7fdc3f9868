package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zfsctool/zfsctool/internal/fsinfo"
)

// Registry is the process-wide map from filesystem identifier to a
// State, plus a path→dataset cache (spec.md §3). Registry owns every
// State it holds; workers hold shared, non-owning references. Unlike the
// source's true global singleton, Registry is an explicit handle passed
// to the worker pool and the rewriter (spec.md §9 design note).
type Registry struct {
	mu       sync.Mutex
	byFsID   map[fsinfo.FilesystemId]*State
	byPath   map[string]*State
	quitting func() bool
}

// NewRegistry creates an empty registry. quitting, if non-nil, is
// threaded into every State constructed via Resolve so that
// DatasetState.Acquire can refuse non-restoring mutations once the
// process is quitting.
func NewRegistry(quitting func() bool) *Registry {
	return &Registry{
		byFsID:   make(map[fsinfo.FilesystemId]*State),
		byPath:   make(map[string]*State),
		quitting: quitting,
	}
}

// ByFsID returns the State registered under id, if any.
func (r *Registry) ByFsID(id fsinfo.FilesystemId) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byFsID[id]
	return s, ok
}

// ByPath returns the State cached for path, if any.
func (r *Registry) ByPath(path string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byPath[path]
	return s, ok
}

// Insert registers state under the filesystem id.
func (r *Registry) Insert(id fsinfo.FilesystemId, state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFsID[id] = state
}

// Associate caches state for path.
func (r *Registry) Associate(path string, state *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath[path] = state
}

// Resolve implements the first-observation algorithm of spec.md §4.2 for
// path: query the filesystem, reject non-ZFS or wrong file types, reuse
// an existing State by FilesystemId, or look up the dataset via admin
// and construct and insert a new State. It returns ok=false (no error)
// when path is ineligible for registry membership at all (not ZFS, or
// not a regular file/followable symlink) — that is not itself an error,
// per the Ineligible entry in the error taxonomy.
func (r *Registry) Resolve(path string, admin Admin, followSymlinks, quickReset bool) (state *State, ok bool, err error) {
	if s, hit := r.ByPath(path); hit {
		return s, true, nil
	}

	info, err := fsinfo.Query(path)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", path, err)
	}
	if !info.IsZFS {
		return nil, false, nil
	}

	fi, statErr := lstatOrStat(path, followSymlinks)
	if statErr != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", path, statErr)
	}
	isRegular := fi.Mode().IsRegular()
	isEligibleSymlink := followSymlinks && fi.Mode()&os.ModeSymlink != 0
	if !isRegular && !isEligibleSymlink {
		return nil, false, nil
	}

	if s, hit := r.ByFsID(info.ID); hit {
		r.Associate(path, s)
		return s, true, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", path, err)
	}
	lookup, err := admin.Lookup(abs)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", path, err)
	}

	s := NewState(lookup.Dataset, admin, lookup.Codec, lookup.Sync, quickReset, r.quitting)
	r.Insert(info.ID, s)
	r.Associate(path, s)
	return s, true, nil
}

// lstatOrStat stats path following symlinks when followSymlinks is set,
// and without following otherwise — this is what makes a symlink visible
// as S_ISLNK to the eligibility check when following is disabled.
func lstatOrStat(path string, followSymlinks bool) (os.FileInfo, error) {
	if followSymlinks {
		return os.Stat(path)
	}
	return os.Lstat(path)
}

// Clear drains the registry, restoring every contained State to its
// original codec unless it is already there or marked read-only. It
// must be called only after the worker pool has joined (spec.md §4.2).
// Errors from individual restorations are collected and returned
// together; Clear always attempts every entry regardless of earlier
// failures.
func (r *Registry) Clear() error {
	r.mu.Lock()
	states := make([]*State, 0, len(r.byFsID))
	for _, s := range r.byFsID {
		states = append(states, s)
	}
	r.byFsID = make(map[fsinfo.FilesystemId]*State)
	r.byPath = make(map[string]*State)
	r.mu.Unlock()

	var errs []error
	for _, s := range states {
		if s.ReadOnly() {
			continue
		}
		if _, err := s.ForceRestore(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("registry clear: %d dataset(s) failed to restore: %w", len(errs), errs[0])
}
