// Package zfsadmin provides concrete DatasetAdmin implementations: CLIAdmin
// shells out to the zfs/zpool binaries via internal/cmdrunner; TestAdmin is
// the no-op/echo adapter spec.md §4.1 requires whenever the target codec
// is "test".
package zfsadmin

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zfsctool/zfsctool/internal/cmdrunner"
	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/dataset"
)

// CLIAdmin is a dataset.Admin that drives the zfs(8)/zpool(8) command-line
// tools. It requires zfs/zpool to be on PATH and usable by the running
// user; on non-ZFS paths the core silently skips (spec.md §6).
type CLIAdmin struct {
	runner *cmdrunner.Runner
	// Verbose logs every command it runs, mirroring the original tool's
	// -v diagnostic lines.
	Verbose bool
}

// NewCLIAdmin constructs a CLIAdmin using the given command runner. If
// runner is nil, a default cmdrunner.Runner is used.
func NewCLIAdmin(runner *cmdrunner.Runner) *CLIAdmin {
	if runner == nil {
		runner = cmdrunner.New()
	}
	return &CLIAdmin{runner: runner}
}

// Lookup resolves path to its containing dataset, current compression,
// and current sync property via `zfs list -H -o name,compression,sync`,
// which accepts a file path directly and resolves it to the owning
// dataset.
func (a *CLIAdmin) Lookup(path string) (dataset.LookupResult, error) {
	cmd := fmt.Sprintf("zfs list -H -o name,compression,sync %s", shellQuote(path))
	res := a.runner.Run(cmd, true, 4096, 4000)
	if res.Code != cmdrunner.OK {
		return dataset.LookupResult{}, fmt.Errorf("%w: zfs list %s: %v", dataset.ErrNotFound, path, res.Err)
	}

	fields := strings.Fields(res.Output)
	if len(fields) != 3 {
		return dataset.LookupResult{}, fmt.Errorf("%w: unexpected zfs list output %q", dataset.ErrNotFound, res.Output)
	}

	c, err := codec.Parse(fields[1])
	if err != nil {
		// An unrecognized compression value (e.g. a versioned algorithm
		// this tool doesn't model) is still a valid dataset observation;
		// record it verbatim rather than failing the lookup.
		c = codec.Codec(fields[1])
	}

	return dataset.LookupResult{
		Dataset: dataset.Name(fields[0]),
		Codec:   c,
		Sync:    fields[2],
	}, nil
}

// SetCompression runs `zfs set compression=<c> <name>`.
func (a *CLIAdmin) SetCompression(name dataset.Name, c codec.Codec) error {
	cmd := fmt.Sprintf("zfs set compression=%s %s", shellQuote(string(c)), shellQuote(string(name)))
	if a.Verbose {
		slog.Info("zfsadmin: running", "cmd", cmd)
	}
	res := a.runner.Run(cmd, false, 256, 150)
	if res.Code != cmdrunner.OK {
		return fmt.Errorf("set compression=%s on %s: %w", c, name, res.Err)
	}
	return nil
}

// SyncPool runs `zpool sync <poolName>`.
func (a *CLIAdmin) SyncPool(poolName string) error {
	cmd := fmt.Sprintf("zpool sync %s", shellQuote(poolName))
	if a.Verbose {
		slog.Info("zfsadmin: running", "cmd", cmd)
	}
	res := a.runner.Run(cmd, false, 256, 10_000)
	if res.Code != cmdrunner.OK {
		return fmt.Errorf("zpool sync %s: %w", poolName, res.Err)
	}
	return nil
}

// shellQuote wraps s in double quotes for interpolation into a `sh -c`
// command string, matching the quoting the original tool uses around
// paths and dataset names.
func shellQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
