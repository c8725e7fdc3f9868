// Package jobinfo implements the JobInfo accumulator of spec.md §3: the
// shared, concurrently-updated counters and run configuration every
// worker consults and contributes to.
package jobinfo

import (
	"sync/atomic"
	"time"

	"github.com/zfsctool/zfsctool/internal/codec"
)

// JobInfo is the run-wide accumulator shared across all workers
// (spec.md §3). Configuration fields are set once before the pool starts
// and read concurrently thereafter; counters are updated with atomics.
type JobInfo struct {
	// Configuration, read-only once the pool starts.
	TargetCodec     codec.Codec
	MaxSize         int64
	CheckFiles      bool // verify after rewrite
	Backup          bool
	FollowSymlinks  bool
	AllowReCompress bool

	startTime time.Time

	numFiles          atomic.Int64
	uncompressedBytes atomic.Int64
	compressedBytes   atomic.Int64

	rewritten  atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	verifyFail atomic.Int64
}

// New constructs a JobInfo for one run.
func New(targetCodec codec.Codec, maxSize int64, checkFiles, backup, followSymlinks, allowReCompress bool) *JobInfo {
	return &JobInfo{
		TargetCodec:     targetCodec,
		MaxSize:         maxSize,
		CheckFiles:      checkFiles,
		Backup:          backup,
		FollowSymlinks:  followSymlinks,
		AllowReCompress: allowReCompress,
		startTime:       time.Now(),
	}
}

// AddFile records one rewritten file's before/after size.
func (j *JobInfo) AddFile(uncompressed, compressed int64) {
	j.numFiles.Add(1)
	j.uncompressedBytes.Add(uncompressed)
	j.compressedBytes.Add(compressed)
	j.rewritten.Add(1)
}

// AddSkipped records one file that the quit flag or its dataset's
// read-only latch skipped before it began. Files Eligibility rejects
// during the scan are not counted here.
func (j *JobInfo) AddSkipped() { j.skipped.Add(1) }

// AddFailed records one file whose rewrite failed (TransientIO,
// VerifyMismatch after the one-shot retry, or a surfaced AdminFailure).
func (j *JobInfo) AddFailed() { j.failed.Add(1) }

// AddVerifyFailure records a VerifyMismatch whose one-shot retry did not
// succeed; a mismatch that the retry repairs is not counted.
func (j *JobInfo) AddVerifyFailure() { j.verifyFail.Add(1) }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	NumFiles          int64
	UncompressedBytes int64
	CompressedBytes   int64
	Rewritten         int64
	Skipped           int64
	Failed            int64
	VerifyFailures    int64
	Elapsed           time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (j *JobInfo) Snapshot() Snapshot {
	return Snapshot{
		NumFiles:          j.numFiles.Load(),
		UncompressedBytes: j.uncompressedBytes.Load(),
		CompressedBytes:   j.compressedBytes.Load(),
		Rewritten:         j.rewritten.Load(),
		Skipped:           j.skipped.Load(),
		Failed:            j.failed.Load(),
		VerifyFailures:    j.verifyFail.Load(),
		Elapsed:           time.Since(j.startTime),
	}
}
