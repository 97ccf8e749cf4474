// Package restorer materializes a stored snapshot back to its file path
// (C9), atomically.
package restorer

import (
	"os"
	"path/filepath"

	"github.com/ftm-project/ftm/internal/errors"
)

// Restore writes data to absPath via temp-file-in-same-dir + fsync +
// rename, creating parent directories as needed. It does not touch the
// history index — the watcher's subsequent event on absPath is what
// records the restore as a new history entry.
func Restore(absPath string, data []byte) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IO("failed to create parent directory for restore", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(absPath)+".ftm-restore-*")
	if err != nil {
		return errors.IO("failed to create temp file for restore", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to write restore temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.IO("failed to fsync restore temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.IO("failed to close restore temp file", err)
	}

	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return errors.IO("failed to rename restore temp file into place", err)
	}
	return nil
}
