// Package replace swaps a patched copy into place behind a single-generation
// backup, bounding the damage of a mid-sequence failure: the backup always
// exists before the original path is overwritten, so the worst case after a
// crash is a missing live file recoverable from its backup.
package replace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ba2tools/ba2patch/internal/logging"
)

var log = logging.L("replace")

// DefaultBackupSuffix is inserted before the original file's extension.
const DefaultBackupSuffix = ".bak"

// Replacer performs backup-then-swap file replacement.
type Replacer struct {
	// BackupSuffix defaults to DefaultBackupSuffix when empty.
	BackupSuffix string
}

// BackupPath returns the backup location for original: the suffix is
// inserted before the extension, in the same directory
// ("game.exe" -> "game.bak.exe").
func (r *Replacer) BackupPath(original string) string {
	suffix := r.BackupSuffix
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	ext := filepath.Ext(original)
	return strings.TrimSuffix(original, ext) + suffix + ext
}

// ReplaceWithBackup renames original to its backup path (deleting any
// previous backup first) and then renames newContentPath into place. Invoke
// only after the patched file has been fully written.
//
// On failure after the backup rename, the dangling temp file is deleted
// best-effort and the original error is returned.
func (r *Replacer) ReplaceWithBackup(originalPath, newContentPath string) error {
	backupPath := r.BackupPath(originalPath)

	// Single-generation backup, no chaining.
	if _, err := os.Stat(backupPath); err == nil {
		if err := os.Remove(backupPath); err != nil {
			return fmt.Errorf("remove previous backup %s: %w", backupPath, err)
		}
	}

	if err := os.Rename(originalPath, backupPath); err != nil {
		r.cleanupTemp(newContentPath)
		return fmt.Errorf("back up %s: %w", originalPath, err)
	}

	// From here the backup holds the only pre-patch copy.
	if err := os.Rename(newContentPath, originalPath); err != nil {
		r.cleanupTemp(newContentPath)
		return fmt.Errorf("move patched file into place at %s: %w", originalPath, err)
	}

	log.Info("replaced file", "path", originalPath, "backup", backupPath)
	return nil
}

// Restore copies the backup back over originalPath. The backup is kept so a
// restore can be repeated.
func (r *Replacer) Restore(originalPath string) error {
	backupPath := r.BackupPath(originalPath)
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("no backup found at %s: %w", backupPath, err)
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("open backup %s: %w", backupPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat backup %s: %w", backupPath, err)
	}

	dst, err := os.OpenFile(originalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("open %s for restore: %w", originalPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore %s from backup: %w", originalPath, err)
	}

	log.Info("restored file from backup", "path", originalPath, "backup", backupPath)
	return nil
}

// cleanupTemp removes the patched temp file best-effort; a failure here is
// logged, never re-raised over the original error.
func (r *Replacer) cleanupTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to delete dangling temp file", "path", path, "error", err)
	}
}
