// Package delta validates and applies external binary delta patches
// (xdelta3 VCDIFF) to files, producing a patched copy without touching
// the source.
package delta

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ba2tools/ba2patch/internal/logging"
)

var log = logging.L("delta")

// DefaultToolName is the fixed executable name of the decoding tool.
const DefaultToolName = "xdelta3"

// ErrToolNotFound reports that the delta tool could not be located.
var ErrToolNotFound = errors.New("delta tool not found")

// ToolLookup resolves a tool name to an executable path. It is injected so
// tests can substitute a fixed path without touching the real filesystem
// or PATH.
type ToolLookup func(name string) (string, error)

// DefaultLookup searches the application directory, then the current working
// directory, then each PATH entry.
func DefaultLookup(name string) (string, error) {
	exe := exeName(name)

	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), exe)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, exe)
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(exe); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s is not in the application directory, working directory, or PATH", ErrToolNotFound, exe)
}

func exeName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
