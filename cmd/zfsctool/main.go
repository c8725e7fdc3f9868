// Command zfsctool rewrites files in place to force ZFS to re-store them
// under a different dataset compression codec.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zfsctool/zfsctool/internal/applog"
	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/config"
	"github.com/zfsctool/zfsctool/internal/dataset"
	"github.com/zfsctool/zfsctool/internal/history"
	"github.com/zfsctool/zfsctool/internal/jobinfo"
	"github.com/zfsctool/zfsctool/internal/pathmatch"
	"github.com/zfsctool/zfsctool/internal/rewrite"
	"github.com/zfsctool/zfsctool/internal/scan"
	"github.com/zfsctool/zfsctool/internal/sizeparse"
	"github.com/zfsctool/zfsctool/internal/supervisor"
	"github.com/zfsctool/zfsctool/internal/throttle"
	"github.com/zfsctool/zfsctool/internal/ui"
	"github.com/zfsctool/zfsctool/internal/workerpool"
	"github.com/zfsctool/zfsctool/internal/zfsadmin"
)

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared
// pathmatch.Chain as pflag parses each occurrence.
type filterFlag struct {
	chain   *pathmatch.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

var version = "dev"

func main() {
	os.Exit(run())
}

type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point wires the whole pipeline
func run() int {
	var (
		commit         bool
		targetCodecStr string
		maxSizeStr     string
		jWorkers       int
		bigJWorkers    int
		sortBySize     bool
		reverseWorkers int
		backup         bool
		followSymlinks bool
		dedupHardlinks bool
		noVerify       bool
		forceRewrite   bool
		noQuickReset   bool
		verbose        int
		showVersion    bool
		logJSON        string
		historyDBPath  string
		bwLimitStr     string
		useIOURing     bool
		filterFile     string
		quiet          bool
	)

	chain := pathmatch.NewChain()

	rootCmd := &cobra.Command{
		Use:   "zfsctool [flags] <path>...",
		Short: "Rewrite files in place to force a new ZFS compression codec",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "zfsctool %s\n", version)
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, &targetCodecStr, &maxSizeStr, &jWorkers, &reverseWorkers, &noQuickReset, &backup, &bwLimitStr)
			if !cmd.Flags().Changed("no-verify") && cfg.Defaults.Verify != nil {
				noVerify = !*cfg.Defaults.Verify
			}

			var jsonW *os.File
			if logJSON != "" {
				jsonW, err = os.Create(logJSON)
				if err != nil {
					return fmt.Errorf("open --log-json file: %w", err)
				}
				defer jsonW.Close()
			}
			applog.Setup(applog.Options{Verbose: verbose, Quiet: quiet, JSON: optionalWriter(jsonW)})

			targetCodec, err := codec.Parse(targetCodecStr)
			if err != nil {
				return &exitError{code: 22} // EINVAL
			}

			var maxSize int64
			if maxSizeStr != "" {
				maxSize, err = sizeparse.Parse(maxSizeStr)
				if err != nil {
					return fmt.Errorf("invalid -m: %w", err)
				}
			}

			var bwLimit int64
			if bwLimitStr != "" {
				bwLimit, err = sizeparse.Parse(bwLimitStr)
				if err != nil {
					return fmt.Errorf("invalid --bwlimit: %w", err)
				}
			}

			numWorkers := jWorkers + bigJWorkers
			exclusiveIO := jWorkers > 0 && bigJWorkers == 0
			if numWorkers <= 0 {
				numWorkers = min(runtime.NumCPU(), 8)
			}
			if backup {
				numWorkers = 1
			}
			if !sortBySize {
				reverseWorkers = 0
			}

			var admin dataset.Admin
			if targetCodec.IsTest() {
				admin = zfsadmin.NewTestAdmin()
			} else {
				admin = zfsadmin.NewCLIAdmin(nil)
			}

			var exclusiveMu *sync.Mutex
			if exclusiveIO {
				exclusiveMu = &sync.Mutex{}
			}

			rwCfg := rewrite.Config{
				TargetCodec:    targetCodec,
				FollowSymlinks: followSymlinks,
				Backup:         backup,
				Verify:         !noVerify,
				Verbose:        verbose,
				ExclusiveIO:    exclusiveMu,
				UseIOURing:     useIOURing,
			}
			if bwLimit > 0 {
				rwCfg.BWLimiter = throttle.NewLimiter(bwLimit)
			}

			rw := rewrite.New(rwCfg)
			defer rw.Close()

			var historyDB *history.DB
			if historyDBPath != "" {
				historyDB, err = history.Open(historyDBPath, targetCodec)
				if err != nil {
					return fmt.Errorf("open --history-db: %w", err)
				}
				defer historyDB.Close()
			}

			var sup *supervisor.Supervisor
			registry := dataset.NewRegistry(func() bool {
				return sup != nil && sup.Quitting()
			})
			sup = supervisor.New(registry)
			sup.Start()
			defer sup.Stop()

			job := jobinfo.New(targetCodec, maxSize, !noVerify, backup, followSymlinks, forceRewrite)

			if filterFile != "" {
				if filterErr := chain.LoadFile(filterFile); filterErr != nil {
					return fmt.Errorf("--filter-file: %w", filterErr)
				}
			}
			var filters *pathmatch.Chain
			if !chain.Empty() {
				filters = chain
			}

			var allItems []workerpool.Item
			for _, root := range args {
				items, walkErr := scan.Walk(root, admin, registry, scan.Config{
					TargetCodec:     targetCodec,
					MaxSize:         maxSize,
					FollowSymlinks:  followSymlinks,
					AllowReCompress: forceRewrite,
					QuickReset:      !noQuickReset,
					DedupHardlinks:  dedupHardlinks,
					Filters:         filters,
				})
				if walkErr != nil {
					return fmt.Errorf("scan %s: %w", root, walkErr)
				}
				allItems = append(allItems, items...)
			}

			if !commit {
				fmt.Fprintf(os.Stdout, "%d file(s) would be rewritten to codec %s\n", len(allItems), targetCodec)
				return nil
			}

			pool := workerpool.New(workerpool.Config{
				NumWorkers: numWorkers,
				NumReverse: reverseWorkers,
				SortBySize: sortBySize,
				Quitting:   sup.Quitting,
			}, rw, job)

			presenter := ui.New(os.Stdout, len(allItems), quiet)
			presenter.Start(job)
			outcomes := pool.Run(allItems)
			presenter.Stop()
			if historyDB != nil {
				for _, o := range outcomes {
					if recErr := historyDB.RecordOutcome(o); recErr != nil {
						return fmt.Errorf("record history: %w", recErr)
					}
				}
			}

			if finalizeErr := sup.Finalize(); finalizeErr != nil {
				return fmt.Errorf("finalize dataset restoration: %w", finalizeErr)
			}

			snap := job.Snapshot()
			fmt.Fprintf(os.Stdout, "rewritten=%d skipped=%d failed=%d verify-failures=%d elapsed=%s\n",
				snap.Rewritten, snap.Skipped, snap.Failed, snap.VerifyFailures, snap.Elapsed)

			if snap.Failed > 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&commit, "commit", "c", false, "enable rewriting; without it the tool is read-only")
	rootCmd.Flags().StringVarP(&targetCodecStr, "target-codec", "T", string(codec.LZ4), "target compression codec")
	rootCmd.Flags().StringVarP(&maxSizeStr, "max-size", "m", "", "reject files larger than SIZE (e.g. 1M, 500K)")
	rootCmd.Flags().IntVarP(&jWorkers, "workers-exclusive", "j", 0, "parallel workers with exclusiveIO=true")
	rootCmd.Flags().IntVarP(&bigJWorkers, "workers-concurrent", "J", 0, "parallel workers with exclusiveIO=false")
	rootCmd.Flags().BoolVarP(&sortBySize, "sort", "S", false, "sort queue ascending by file size")
	rootCmd.Flags().IntVarP(&reverseWorkers, "reverse-workers", "R", 0, "assign N workers to the tail (ignored without -S)")
	rootCmd.Flags().BoolVarP(&backup, "backup", "b", false, "opt-in backups (forces nWorkers=1)")
	rootCmd.Flags().BoolVarP(&followSymlinks, "follow-symlinks", "L", false, "follow symlinks")
	rootCmd.Flags().BoolVarP(&dedupHardlinks, "hardlinks", "f", false, "detect hard links and rewrite each inode once")
	rootCmd.Flags().BoolVarP(&noVerify, "no-verify", "n", false, "disable post-write verification")
	rootCmd.Flags().BoolVarP(&forceRewrite, "force", "F", false, "rewrite even when the marker or dataset codec already matches")
	rootCmd.Flags().BoolVarP(&noQuickReset, "no-quick-reset", "q", false, "disable quick-reset (restore codecs only at end)")
	rootCmd.Flags().CountVarP(&verbose, "verbose", "v", "increase verbosity (repeatable)")
	rootCmd.Flags().StringVar(&logJSON, "log-json", "", "also write structured JSON logs to FILE")
	rootCmd.Flags().StringVar(&historyDBPath, "history-db", "", "record per-run outcomes to a SQLite database at PATH")
	rootCmd.Flags().StringVar(&bwLimitStr, "bwlimit", "", "aggregate bandwidth limit (e.g. 50M, 200M)")
	rootCmd.Flags().BoolVar(&useIOURing, "iouring", false, "use io_uring for the rewrite write path (Linux only)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "Q", false, "suppress the live/periodic progress presenter")
	rootCmd.Flags().VarP(&filterFlag{chain: chain, include: false}, "exclude", "", "exclude files matching PATTERN (repeatable, order relative to --include matters)")
	rootCmd.Flags().VarP(&filterFlag{chain: chain, include: true}, "include", "", "include files matching PATTERN (repeatable, order relative to --exclude matters)")
	rootCmd.Flags().StringVar(&filterFile, "filter-file", "", "load include/exclude rules from an rsync-style filter file")
	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok { //nolint:errorlint // sentinel exit wrapper, not a wrapped chain
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	targetCodecStr, maxSizeStr *string,
	jWorkers, reverseWorkers *int,
	noQuickReset, backup *bool,
	bwLimitStr *string,
) {
	if !cmd.Flags().Changed("target-codec") && defaults.TargetCodec != nil {
		*targetCodecStr = *defaults.TargetCodec
	}
	if !cmd.Flags().Changed("max-size") && defaults.MaxSize != nil {
		*maxSizeStr = fmt.Sprintf("%d", *defaults.MaxSize)
	}
	if !cmd.Flags().Changed("workers-exclusive") && defaults.Workers != nil {
		*jWorkers = *defaults.Workers
	}
	if !cmd.Flags().Changed("reverse-workers") && defaults.ReverseWorkers != nil {
		*reverseWorkers = *defaults.ReverseWorkers
	}
	if !cmd.Flags().Changed("backup") && defaults.Backup != nil {
		*backup = *defaults.Backup
	}
	if !cmd.Flags().Changed("no-quick-reset") && defaults.QuickReset != nil {
		*noQuickReset = !*defaults.QuickReset
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		*bwLimitStr = *defaults.BWLimit
	}
}

func optionalWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}
