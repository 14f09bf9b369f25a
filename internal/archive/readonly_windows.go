//go:build windows

package archive

import (
	"os"

	"golang.org/x/sys/windows"
)

// isReadOnly reports whether FILE_ATTRIBUTE_READONLY is set.
func isReadOnly(path string, _ os.FileInfo) bool {
	attrs, err := fileAttributes(path)
	if err != nil {
		return false
	}
	return attrs&windows.FILE_ATTRIBUTE_READONLY != 0
}

// clearReadOnly drops FILE_ATTRIBUTE_READONLY. The returned restore func
// puts the attribute back and must run on every exit path; it is a no-op
// when the attribute was not set.
func clearReadOnly(path string) (restore func(), err error) {
	attrs, err := fileAttributes(path)
	if err != nil {
		return nil, err
	}

	if attrs&windows.FILE_ATTRIBUTE_READONLY == 0 {
		return func() {}, nil
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	if err := windows.SetFileAttributes(p, attrs&^windows.FILE_ATTRIBUTE_READONLY); err != nil {
		return nil, err
	}
	return func() {
		if err := windows.SetFileAttributes(p, attrs); err != nil {
			log.Warn("failed to restore read-only attribute", "path", path, "error", err)
		}
	}, nil
}

func fileAttributes(path string) (uint32, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.GetFileAttributes(p)
}
