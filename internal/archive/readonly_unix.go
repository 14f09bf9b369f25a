//go:build !windows

package archive

import "os"

// isReadOnly reports whether the owner write bit is cleared.
func isReadOnly(_ string, info os.FileInfo) bool {
	return info.Mode().Perm()&0200 == 0
}

// clearReadOnly makes the file writable by its owner. The returned restore
// func puts the original permission bits back and must run on every exit
// path; it is a no-op when the file was already writable.
func clearReadOnly(path string) (restore func(), err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	mode := info.Mode()
	if mode.Perm()&0200 != 0 {
		return func() {}, nil
	}

	if err := os.Chmod(path, mode|0200); err != nil {
		return nil, err
	}
	return func() {
		if err := os.Chmod(path, mode); err != nil {
			log.Warn("failed to restore read-only flag", "path", path, "error", err)
		}
	}, nil
}
