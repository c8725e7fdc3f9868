// Package dataset implements the per-dataset compression-codec state
// machine and the process-wide registry that maps filesystems to it. It
// depends only on the abstract DatasetAdmin capability; concrete
// implementations live in internal/zfsadmin.
package dataset

import (
	"errors"
	"fmt"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// Name is a dataset's hierarchical name, e.g. "tank/home/alice". The
// first '/'-separated component is the pool name. Immutable once
// observed.
type Name string

// Pool returns the pool name, the first component of the dataset name.
func (n Name) Pool() string {
	for i := 0; i < len(n); i++ {
		if n[i] == '/' {
			return string(n[:i])
		}
	}
	return string(n)
}

// ErrNotZFS is returned by Admin.Lookup when path is not on a ZFS
// filesystem.
var ErrNotZFS = errors.New("dataset: not a ZFS filesystem")

// ErrNotFound is returned by Admin.Lookup when no dataset could be
// resolved for path despite it being on a ZFS filesystem.
var ErrNotFound = errors.New("dataset: no dataset found for path")

// LookupResult is the result of Admin.Lookup for a path known to be on a
// ZFS filesystem.
type LookupResult struct {
	Dataset Name
	Codec   codec.Codec
	Sync    string // the dataset's current "sync" property value
}

// Admin is the DatasetCodecControl capability boundary (spec.md §4.1,
// §9): the three operations the core needs from a ZFS administrative
// mechanism. It is a capability, not an inheritance hierarchy — concrete
// implementations (shell-out, test no-op) satisfy it directly.
type Admin interface {
	// Lookup resolves path to its containing dataset, current codec, and
	// current sync property. Returns ErrNotZFS or ErrNotFound as
	// appropriate.
	Lookup(path string) (LookupResult, error)
	// SetCompression sets name's compression property to c. A non-nil
	// error must leave the dataset's actual compression property
	// unchanged from the admin's perspective.
	SetCompression(name Name, c codec.Codec) error
	// SyncPool triggers a pool-level sync for poolName.
	SyncPool(poolName string) error
}

// AdminError wraps a non-ok response from Admin.SetCompression, per the
// AdminFailure entry in the error taxonomy: the rewrite proceeds only if
// the required codec happens to already be active, and the dataset's
// original codec is still restored on shutdown.
type AdminError struct {
	Dataset Name
	Codec   codec.Codec
	Err     error
}

func (e *AdminError) Error() string {
	return fmt.Sprintf("dataset %s: set compression %s: %v", e.Dataset, e.Codec, e.Err)
}

func (e *AdminError) Unwrap() error { return e.Err }

// ReadOnlyError reports that a dataset's read-only latch is set, so the
// caller must skip it.
type ReadOnlyError struct {
	Dataset Name
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("dataset %s: marked read-only after a transient I/O failure", e.Dataset)
}
