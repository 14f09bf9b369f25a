package archive

import (
	"fmt"
	"os"

	"github.com/ba2tools/ba2patch/internal/logging"
)

var log = logging.L("archive")

// PatchVersion rewrites the single version byte at versionOffset so the
// archive reports target as its format generation. The write changes exactly
// one byte; file length and all other content are untouched.
//
// Returns (false, err) if the file is missing, does not carry the BTDX
// magic, or the write fails. When the archive is already at target the call
// succeeds without writing. A read-only file is made writable for the
// duration of the patch and restored on every exit path.
func PatchVersion(path string, target Version) (bool, error) {
	if target == VersionUnknown {
		return false, fmt.Errorf("cannot patch %s to an unknown version", path)
	}

	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("archive not found: %w", err)
	}

	ok, err := hasMagic(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if !ok {
		return false, fmt.Errorf("%s is not a BTDX archive", path)
	}

	current, err := readVersionByte(path)
	if err != nil {
		return false, err
	}
	if Version(current) == target {
		log.Debug("archive already at target version", "path", path, "version", target.String())
		return true, nil
	}

	restore, err := clearReadOnly(path)
	if err != nil {
		return false, fmt.Errorf("clear read-only flag on %s: %w", path, err)
	}
	defer restore()

	if err := writeVersionByte(path, byte(target)); err != nil {
		return false, err
	}

	log.Info("patched archive version", "path", path, "from", Version(current).String(), "to", target.String())
	return true, nil
}

func readVersionByte(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, versionOffset); err != nil {
		return 0, fmt.Errorf("read version byte of %s: %w", path, err)
	}
	return buf[0], nil
}

func writeVersionByte(path string, b byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt([]byte{b}, versionOffset); err != nil {
		return fmt.Errorf("write version byte of %s: %w", path, err)
	}
	return nil
}
