// Package rewrite implements FileRewriter (spec.md §4.5): the per-file
// safe rewrite state machine that locks, buffers, optionally backs up,
// truncates and rewrites, optionally verifies, writes the marker
// attribute, and always reaches CLEANUP.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
	"github.com/zfsctool/zfsctool/internal/fsinfo"
	"github.com/zfsctool/zfsctool/internal/jobinfo"
	"github.com/zfsctool/zfsctool/internal/rewrite/ioengine"
	"github.com/zfsctool/zfsctool/internal/throttle"
	"github.com/zfsctool/zfsctool/internal/xattr"
)

// Result classifies how a Rewrite call concluded.
type Result int

const (
	Rewritten Result = iota
	SkippedQuit
	SkippedReadOnly
	Failed
)

func (r Result) String() string {
	switch r {
	case Rewritten:
		return "rewritten"
	case SkippedQuit:
		return "skipped-quit"
	case SkippedReadOnly:
		return "skipped-read-only"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-file result FileRewriter reports; workers
// accumulate these into JobInfo and diagnostics.
type Outcome struct {
	Path    string
	Result  Result
	NewSize int64
	Err     error
}

// Config configures a Rewriter; it is shared read-only across workers.
type Config struct {
	TargetCodec    codec.Codec
	FollowSymlinks bool
	Backup         bool
	Verify         bool
	Verbose        int
	// ExclusiveIO, when non-nil, is the process-wide I/O mutex workers
	// serialize TRUNCATE_WRITE through (spec.md §4.6 exclusiveIO).
	ExclusiveIO *sync.Mutex
	// BackupDir overrides the directory opt-in backups are written to;
	// defaults to os.TempDir().
	BackupDir string
	// UseIOURing enables the io_uring-accelerated write path on Linux,
	// falling back to pwrite when unsupported.
	UseIOURing bool
	// BWLimiter, when non-nil, caps aggregate read/write throughput
	// across every worker sharing this Rewriter.
	BWLimiter *rate.Limiter
}

// Rewriter performs FileRewriter for one Config across many files.
type Rewriter struct {
	cfg    Config
	engine ioengine.Engine
}

// New constructs a Rewriter, resolving the write engine once up front.
func New(cfg Config) *Rewriter {
	r := &Rewriter{cfg: cfg}
	if cfg.UseIOURing {
		if eng, err := ioengine.New(32); err == nil {
			r.engine = eng
		} else {
			slog.Debug("rewrite: io_uring unavailable, using pwrite", "err", err)
		}
	}
	if r.engine == nil {
		r.engine = ioengine.NewFallback()
	}
	return r
}

// Close releases the write engine's resources.
func (r *Rewriter) Close() error {
	if r.engine != nil {
		return r.engine.Close()
	}
	return nil
}

// Rewrite runs the FileRewriter state machine for path against st,
// accumulating into job. quitting reports the process-wide quit flag.
//
//nolint:revive // cognitive-complexity: a single linear state machine is clearer un-split
func (r *Rewriter) Rewrite(path string, st *dataset.State, job *jobinfo.JobInfo, quitting func() bool) Outcome {
	// EARLY_REJECT
	if (quitting != nil && quitting()) || st.ReadOnly() {
		job.AddSkipped()
		result := SkippedQuit
		if st.ReadOnly() {
			result = SkippedReadOnly
		}
		return Outcome{Path: path, Result: result}
	}

	fi, err := statFollow(path, r.cfg.FollowSymlinks)
	if err != nil {
		return r.fail(path, job, fmt.Errorf("stat: %w", err))
	}
	origMode := fi.Mode()
	origSize := fi.Size()
	sysStat := new(unix.Stat_t)
	statFn := unix.Lstat
	if r.cfg.FollowSymlinks {
		statFn = unix.Stat
	}
	if err := statFn(path, sysStat); err != nil {
		return r.fail(path, job, fmt.Errorf("stat: %w", err))
	}
	mtimeSec, mtimeUsec := sysStat.Mtim.Sec, sysStat.Mtim.Nsec/1000

	// PERMIT_WRITE: widen the mode if the owner lacks write permission,
	// remembering the original mode to restore in CLEANUP.
	widened := false
	if origMode.Perm()&0o200 == 0 {
		if err := os.Chmod(path, origMode.Perm()|0o200); err != nil {
			return r.fail(path, job, fmt.Errorf("chmod +w: %w", err))
		}
		widened = true
	}

	cleanup := func() {
		// CLEANUP: restore times and mode unconditionally; nothing
		// below this point may return without running it.
		_ = os.Chtimes(path, atimeOf(sysStat), time.Unix(mtimeSec, mtimeUsec*1000))
		if widened {
			_ = os.Chmod(path, origMode.Perm())
		}
	}

	// LOCK_OPEN: open O_RDWR exclusive, or O_RDONLY when the target is
	// the dry-run sentinel (no write will actually occur).
	flags := os.O_RDWR
	if r.cfg.TargetCodec.IsTest() {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		cleanup()
		return r.fail(path, job, fmt.Errorf("open: %w", err))
	}
	defer func() { f.Close() }() //nolint:errcheck // f may have been reassigned by a retry reopen

	rawFd := int(f.Fd())
	if err := unix.Flock(rawFd, unix.LOCK_EX); err != nil {
		cleanup()
		return r.fail(path, job, fmt.Errorf("flock: %w", err))
	}
	defer func() { unix.Flock(int(f.Fd()), unix.LOCK_UN) }() //nolint:errcheck // best-effort on a file we're about to close

	if sparse, err := fsinfo.IsSparse(f, origSize); err == nil && sparse {
		slog.Debug("rewrite will materialize sparse holes", "path", path)
	}

	// BUFFER: allocate and read the full file into memory.
	buf, bufDigest, err := readWholeFile(f, origSize, r.cfg.BWLimiter)
	if err != nil {
		cleanup()
		return r.fail(path, job, fmt.Errorf("buffer: %w", err))
	}

	// BACKUP?
	var backupPath string
	if r.cfg.Backup {
		backupPath, err = writeBackup(r.cfg.BackupDir, path, buf, origMode, sysStat)
		if err != nil {
			cleanup()
			return r.fail(path, job, fmt.Errorf("backup: %w", err))
		}
	}
	keepBackup := false
	defer func() {
		if backupPath != "" && !keepBackup {
			_ = os.Remove(backupPath)
		}
	}()

	// EXCLUSIVE_IO?
	ioLocked := false
	if r.cfg.ExclusiveIO != nil {
		r.cfg.ExclusiveIO.Lock()
		ioLocked = true
	}
	unlockIO := func() {
		if ioLocked {
			r.cfg.ExclusiveIO.Unlock()
			ioLocked = false
		}
	}
	defer unlockIO()

	// ACQUIRE
	_, acquireErr := st.Acquire(r.cfg.TargetCodec)
	acquired := true
	if acquireErr != nil {
		slog.Warn("admin failure acquiring target codec", "dataset", st.Name(), "err", acquireErr)
		unlockIO()
		r.releaseDataset(st, acquired)
		cleanup()
		job.AddFailed()
		return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("acquire target codec: %w", acquireErr)}
	}

	// TRUNCATE_WRITE, with ERROR_CLASSIFY and the one-shot retry path.
	// The dry-run sentinel reads the file but never writes it.
	var writeErr error
	if !r.cfg.TargetCodec.IsTest() {
		writeErr = r.truncateWrite(f, buf)
	}
	if writeErr != nil {
		if isDatasetFatal(writeErr) {
			st.MarkReadOnly()
			unlockIO()
			r.releaseDataset(st, acquired)
			cleanup()
			job.AddFailed()
			return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("dataset read-only after write error: %w", writeErr)}
		}
		// TransientIO: one-shot retry against a freshly reopened handle,
		// matching the source's fopen-again retry rather than reusing the
		// file descriptor that just failed.
		nf, reopenErr := r.reopenForRetry(path, f)
		if reopenErr != nil {
			unlockIO()
			r.releaseDataset(st, acquired)
			cleanup()
			keepBackup = true
			job.AddFailed()
			return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("transient I/O, reopen failed: %w", reopenErr)}
		}
		f = nf
		rawFd = int(f.Fd())
		if retryErr := r.truncateWrite(f, buf); retryErr != nil {
			unlockIO()
			r.releaseDataset(st, acquired)
			cleanup()
			keepBackup = true
			job.AddFailed()
			return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("transient I/O, retry failed: %w", retryErr)}
		}
	}
	unlockIO()

	// SYNC?
	if r.cfg.Verbose > 0 || r.cfg.TargetCodec == codec.Off {
		if err := st.SyncPool(); err != nil {
			slog.Debug("pool sync failed", "dataset", st.Name(), "err", err)
		}
	}

	// REFRESH_STAT
	newSize := int64(len(buf))
	if refreshed, err := f.Stat(); err == nil {
		newSize = refreshed.Size()
	}

	// VERIFY?
	if r.cfg.Verify {
		if err := r.verify(path, buf, bufDigest); err != nil {
			// Retry against a fresh handle, mirroring the source's
			// fopen-again behavior on a verify mismatch.
			nf, reopenErr := r.reopenForRetry(path, f)
			if reopenErr != nil {
				r.releaseDataset(st, acquired)
				cleanup()
				keepBackup = true
				job.AddVerifyFailure()
				job.AddFailed()
				return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("verify mismatch, reopen failed: %w", reopenErr)}
			}
			f = nf
			rawFd = int(f.Fd())
			if retryErr := r.truncateWrite(f, buf); retryErr != nil {
				r.releaseDataset(st, acquired)
				cleanup()
				keepBackup = true
				job.AddVerifyFailure()
				job.AddFailed()
				return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("verify mismatch, retry failed: %w", retryErr)}
			}
			if verr := r.verify(path, buf, bufDigest); verr != nil {
				r.releaseDataset(st, acquired)
				cleanup()
				keepBackup = true
				job.AddVerifyFailure()
				job.AddFailed()
				return Outcome{Path: path, Result: Failed, Err: fmt.Errorf("verify mismatch persisted after retry: %w", verr)}
			}
		}
	}

	// WRITE_MARKER: tolerate EACCES/EPERM.
	if !r.cfg.TargetCodec.IsTest() {
		if err := xattr.WriteMarker(rawFd, r.cfg.TargetCodec, mtimeSec, mtimeUsec); err != nil {
			slog.Warn("failed to write marker attribute", "path", path, "err", err)
		}
	}

	// QUICK_RELEASE? / final release: State.Release internally decides
	// whether to restore now (quick-reset) or defer (Registry.Clear).
	r.releaseDataset(st, acquired)

	cleanup()
	job.AddFile(origSize, newSize)
	return Outcome{Path: path, Result: Rewritten, NewSize: newSize}
}

func (r *Rewriter) releaseDataset(st *dataset.State, acquired bool) {
	if !acquired {
		return
	}
	if _, err := st.Release(false); err != nil {
		slog.Warn("admin failure releasing codec", "dataset", st.Name(), "err", err)
	}
}

// reopenForRetry closes old (releasing its flock) and opens path again
// under the same flag policy as the initial LOCK_OPEN, re-acquiring an
// exclusive flock on the new descriptor. Retries use a fresh handle
// rather than the one that just failed, matching the source's
// fopen-again semantics on a transient write or verify failure.
func (r *Rewriter) reopenForRetry(path string, old *os.File) (*os.File, error) {
	_ = unix.Flock(int(old.Fd()), unix.LOCK_UN)
	_ = old.Close()

	flags := os.O_RDWR
	if r.cfg.TargetCodec.IsTest() {
		flags = os.O_RDONLY
	}
	nf, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("reopen: %w", err)
	}
	if err := unix.Flock(int(nf.Fd()), unix.LOCK_EX); err != nil {
		_ = nf.Close()
		return nil, fmt.Errorf("reopen flock: %w", err)
	}
	return nf, nil
}

func (r *Rewriter) truncateWrite(f *os.File, buf []byte) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if r.cfg.BWLimiter != nil {
		if err := throttle.WaitBytes(context.Background(), r.cfg.BWLimiter, len(buf)); err != nil {
			return fmt.Errorf("bandwidth limiter: %w", err)
		}
	}
	n, err := r.engine.WriteFile(int(f.Fd()), buf)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

func (r *Rewriter) fail(path string, job *jobinfo.JobInfo, err error) Outcome {
	job.AddFailed()
	return Outcome{Path: path, Result: Failed, Err: err}
}

// isDatasetFatal classifies errno per spec.md's ERROR_CLASSIFY: EIO,
// EDQUOT, and ENOSPC latch the dataset read-only rather than retrying.
func isDatasetFatal(err error) bool {
	return errors.Is(err, unix.EIO) || errors.Is(err, unix.EDQUOT) || errors.Is(err, unix.ENOSPC)
}

func statFollow(path string, follow bool) (os.FileInfo, error) {
	if follow {
		return os.Stat(path)
	}
	return os.Lstat(path)
}

func atimeOf(st *unix.Stat_t) time.Time {
	return time.Unix(st.Atim.Sec, st.Atim.Nsec)
}
