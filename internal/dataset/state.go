package dataset

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// State is the per-dataset object holding original and current codec, an
// in-flight-rewrite refcount, a read-only latch, and a mutex serializing
// codec changes (spec.md §3, §4.3).
type State struct {
	name          Name
	pool          string
	originalCodec codec.Codec
	originalSync  string

	admin      Admin
	quickReset bool
	quitting   func() bool // nil means never quitting

	mu               sync.Mutex
	currentCodec     codec.Codec
	shuntedIncreases int64
	shuntedDecreases int64

	refcount int32 // atomic; mutated outside mu, codec changes gated by mu
	readOnly atomic.Bool

	logOnce sync.Once
}

// NewState constructs a DatasetState for a dataset just observed at
// originalCodec/originalSync. quitting, if non-nil, reports whether the
// process-wide quit flag is set; quickReset selects the quick-reset vs.
// deferred-restore release behavior (spec.md §4.3).
func NewState(name Name, admin Admin, originalCodec codec.Codec, originalSync string, quickReset bool, quitting func() bool) *State {
	return &State{
		name:          name,
		pool:          name.Pool(),
		originalCodec: originalCodec,
		currentCodec:  originalCodec,
		originalSync:  originalSync,
		admin:         admin,
		quickReset:    quickReset,
		quitting:      quitting,
	}
}

// Name returns the dataset's name.
func (s *State) Name() Name { return s.name }

// OriginalCodec returns the codec observed when the dataset was first
// looked up.
func (s *State) OriginalCodec() codec.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalCodec
}

// CurrentCodec returns the codec believed to be active right now.
func (s *State) CurrentCodec() codec.Codec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentCodec
}

// Refcount returns the current in-flight-rewrite count.
func (s *State) Refcount() int32 { return atomic.LoadInt32(&s.refcount) }

// ReadOnly reports whether the read-only latch is set.
func (s *State) ReadOnly() bool { return s.readOnly.Load() }

// MarkReadOnly is a one-shot latch; subsequent Acquire calls are rejected
// at the call site (workers consult ReadOnly before queuing further
// writes to the same dataset).
func (s *State) MarkReadOnly() {
	if !s.readOnly.CompareAndSwap(false, true) {
		return
	}
	s.logOnce.Do(func() {
		slog.Warn("dataset marked read-only after transient I/O failure",
			slog.Group("dataset", "name", string(s.name), "pool", s.pool))
	})
}

// Acquire increments refcount and, if the dataset isn't already at c,
// asks Admin to change it. It returns changed=true iff a codec change
// actually occurred; otherwise shuntedIncreases is incremented. The
// refcount always rises, even on AdminFailure, so the matching Release
// is still required.
func (s *State) Acquire(c codec.Codec) (changed bool, err error) {
	atomic.AddInt32(&s.refcount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentCodec == c {
		s.shuntedIncreases++
		return false, nil
	}
	if s.quitting != nil && s.quitting() && c != s.originalCodec {
		// Refuse new mutations toward non-original codecs once quitting;
		// restorations to the original codec are always allowed.
		s.shuntedIncreases++
		return false, nil
	}

	if err := s.admin.SetCompression(s.name, c); err != nil {
		return false, &AdminError{Dataset: s.name, Codec: c, Err: err}
	}
	s.currentCodec = c
	return true, nil
}

// Release atomically decrements refcount. When force is true, or when it
// reaches zero in quick-reset mode, it restores originalCodec under the
// state mutex; in deferred mode a zero refcount leaves the codec as is.
// Non-zero decrements increment shuntedDecreases. Returns changed=true
// iff a codec change actually occurred.
func (s *State) Release(force bool) (changed bool, err error) {
	remaining := atomic.AddInt32(&s.refcount, -1)
	if remaining < 0 {
		// Defensive floor: Release must never be called more times than
		// Acquire; clamp rather than go negative.
		atomic.StoreInt32(&s.refcount, 0)
		remaining = 0
	}

	if force {
		return s.restore()
	}
	if remaining > 0 {
		s.mu.Lock()
		s.shuntedDecreases++
		s.mu.Unlock()
		return false, nil
	}
	// remaining == 0: quick-reset mode restores immediately; deferred
	// mode leaves the codec in place until Registry.Clear or
	// ForceRestore runs (spec.md §4.3).
	if !s.quickReset {
		return false, nil
	}
	return s.restore()
}

// ForceRestore restores originalCodec regardless of refcount, like
// Release(force=true) but without decrementing refcount: used by
// Supervisor and by Registry.Clear in non-quick-reset mode.
func (s *State) ForceRestore() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked()
}

// restore acquires the mutex and restores the original codec if needed.
func (s *State) restore() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked()
}

func (s *State) restoreLocked() (bool, error) {
	if s.currentCodec == s.originalCodec {
		return false, nil
	}
	if err := s.admin.SetCompression(s.name, s.originalCodec); err != nil {
		return false, &AdminError{Dataset: s.name, Codec: s.originalCodec, Err: err}
	}
	s.currentCodec = s.originalCodec
	return true, nil
}

// SyncPool asks Admin to flush the dataset's pool (spec.md's SYNC step).
func (s *State) SyncPool() error {
	return s.admin.SyncPool(s.pool)
}

// QuickReset reports whether quick-reset mode is enabled for this
// dataset: when true, a Release that drops refcount to zero restores the
// codec immediately; when false, restoration is deferred to
// Registry.Clear.
func (s *State) QuickReset() bool { return s.quickReset }

// String implements fmt.Stringer for diagnostics.
func (s *State) String() string {
	return fmt.Sprintf("dataset(%s, pool=%s, orig=%s, cur=%s, refcount=%d, readOnly=%v)",
		s.name, s.pool, s.originalCodec, s.CurrentCodec(), s.Refcount(), s.ReadOnly())
}
