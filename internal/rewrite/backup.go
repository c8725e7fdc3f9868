package rewrite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// writeBackup implements the BACKUP step: it snapshots buf (the
// pre-rewrite file contents) to a uniquely named file in dir (os.TempDir()
// when dir is empty), preserving mode and times, so a failed rewrite can be
// recovered from manually. The caller removes it once the rewrite
// succeeds.
func writeBackup(dir, origPath string, buf []byte, mode os.FileMode, st *unix.Stat_t) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("%s.%s.zfsctool-bak", filepath.Base(origPath), uuid.NewString())
	backupPath := filepath.Join(dir, name)

	f, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	defer f.Close()

	if len(buf) > 0 {
		if _, err := f.Write(buf); err != nil {
			os.Remove(backupPath)
			return "", fmt.Errorf("write backup: %w", err)
		}
	}
	atime := time.Unix(st.Atim.Sec, st.Atim.Nsec)
	mtime := time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	_ = os.Chtimes(backupPath, atime, mtime)

	return backupPath, nil
}
