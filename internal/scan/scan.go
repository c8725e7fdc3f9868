// Package scan implements the single-threaded enqueue phase of
// spec.md §4.6: walk a root path, resolve each candidate file's
// dataset, evaluate Eligibility, and collect the accepted set into a
// workerpool.Item slice before the pool's dispatch phase begins.
package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
	"github.com/zfsctool/zfsctool/internal/eligibility"
	"github.com/zfsctool/zfsctool/internal/fsinfo"
	"github.com/zfsctool/zfsctool/internal/pathmatch"
	"github.com/zfsctool/zfsctool/internal/workerpool"
	"github.com/zfsctool/zfsctool/internal/xattr"
)

// Config controls which files the walk accepts.
type Config struct {
	TargetCodec     codec.Codec
	MaxSize         int64
	FollowSymlinks  bool
	AllowReCompress bool
	QuickReset      bool
	DedupHardlinks  bool
	// Filters, when non-nil, is consulted before a file is resolved or
	// evaluated by Eligibility: a path excluded by an --exclude/--include rule is skipped
	// the same as an ineligible one, but never counted as a rejection
	// worth a Debug diagnostic.
	Filters *pathmatch.Chain
}

// Walk traverses root, resolving and evaluating every regular file (or
// followable symlink) it finds, and returns the accepted items ready for
// workerpool.Pool.Run.
func Walk(root string, admin dataset.Admin, registry *dataset.Registry, cfg Config) ([]workerpool.Item, error) {
	var items []workerpool.Item
	seenInodes := make(map[uint64]struct{})

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("walk error", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !cfg.FollowSymlinks {
			return nil
		}
		if cfg.Filters != nil {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && !cfg.Filters.Match(rel, false, 0) {
				return nil
			}
		}

		item, ok, evalErr := evaluate(path, admin, registry, cfg, seenInodes)
		if evalErr != nil {
			slog.Warn("evaluate error", "path", path, "err", evalErr)
			return nil
		}
		if ok {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	return items, nil
}

func evaluate(path string, admin dataset.Admin, registry *dataset.Registry, cfg Config, seenInodes map[uint64]struct{}) (workerpool.Item, bool, error) {
	st, ok, err := registry.Resolve(path, admin, cfg.FollowSymlinks, cfg.QuickReset)
	if err != nil {
		return workerpool.Item{}, false, err
	}
	if !ok {
		return workerpool.Item{}, false, nil
	}

	fi, err := statFollow(path, cfg.FollowSymlinks)
	if err != nil {
		return workerpool.Item{}, false, err
	}
	sysStat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return workerpool.Item{}, false, fmt.Errorf("unsupported stat type for %s", path)
	}

	if cfg.DedupHardlinks {
		key := uint64(sysStat.Ino)
		if _, dup := seenInodes[key]; dup {
			return workerpool.Item{}, false, nil
		}
		seenInodes[key] = struct{}{}
	}

	info, err := fsinfo.Query(path)
	if err != nil {
		return workerpool.Item{}, false, err
	}

	marker, hasMarker := xattr.ReadMarker(path, cfg.FollowSymlinks)

	input := eligibility.Input{
		IsZFS:                info.IsZFS,
		IsRegular:            fi.Mode().IsRegular(),
		IsSymlink:            fi.Mode()&os.ModeSymlink != 0,
		FollowSymlinks:       cfg.FollowSymlinks,
		Size:                 fi.Size(),
		Blocks:               sysStat.Blocks,
		Blksize:              sysStat.Blksize,
		MtimeSec:             sysStat.Mtim.Sec,
		MtimeUsec:            sysStat.Mtim.Nsec / 1000,
		FreeBytes:            info.FreeBytes,
		MaxSize:              cfg.MaxSize,
		TargetCodec:          cfg.TargetCodec,
		DatasetOriginalCodec: st.OriginalCodec(),
		AllowReCompress:      cfg.AllowReCompress,
		HasMarker:            hasMarker,
		Marker:               marker,
	}

	accepted, reason := eligibility.IsRewritable(input)
	if !accepted {
		slog.Debug(eligibility.Diagnostic(path, reason))
		return workerpool.Item{}, false, nil
	}

	return workerpool.Item{Path: path, Size: fi.Size(), State: st}, true, nil
}

func statFollow(path string, follow bool) (os.FileInfo, error) {
	if follow {
		return os.Stat(path)
	}
	return os.Lstat(path)
}
