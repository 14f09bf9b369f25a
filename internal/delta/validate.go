package delta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// vcdiffMagic is the first three bytes of a VCDIFF (RFC 3284) stream.
var vcdiffMagic = []byte{0xD6, 0xC3, 0xC4}

// Check is one individual pre-flight check result.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// ValidationResult captures all pre-flight checks for a patch attempt.
type ValidationResult struct {
	OK     bool    `json:"ok"`
	Reason string  `json:"reason,omitempty"`
	Checks []Check `json:"checks"`
}

// Validator runs pre-flight checks before a delta-patch attempt.
type Validator struct {
	ToolName string
	Lookup   ToolLookup

	// freeSpace probes available bytes on the volume holding path.
	// Overridable in tests.
	freeSpace func(path string) (uint64, error)
}

// NewValidator returns a Validator using the given lookup (nil means
// DefaultLookup) and the default tool name.
func NewValidator(lookup ToolLookup) *Validator {
	if lookup == nil {
		lookup = DefaultLookup
	}
	return &Validator{
		ToolName:  DefaultToolName,
		Lookup:    lookup,
		freeSpace: diskFree,
	}
}

// Validate short-circuits on the first hard failure, in order: source
// readable, patch readable, tool locatable, then a best-effort free-space
// check (2x source size, covering backup plus patched copy). The VCDIFF
// signature check is advisory only: a mismatch is logged as a warning and
// recorded, but never fails validation, since the external tool may still
// accept nonconforming input.
func (v *Validator) Validate(sourcePath, patchPath string) ValidationResult {
	var result ValidationResult

	fail := func(name, reason string) ValidationResult {
		result.Checks = append(result.Checks, Check{Name: name, Message: reason})
		result.Reason = reason
		return result
	}
	pass := func(name string) {
		result.Checks = append(result.Checks, Check{Name: name, Passed: true})
	}

	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return fail("source-readable", fmt.Sprintf("source file not found or unreadable: %s", sourcePath))
	}
	if err := checkReadable(sourcePath); err != nil {
		return fail("source-readable", fmt.Sprintf("source file is not readable: %v", err))
	}
	pass("source-readable")

	if _, err := os.Stat(patchPath); err != nil {
		return fail("patch-readable", fmt.Sprintf("patch file not found or unreadable: %s", patchPath))
	}
	if err := checkReadable(patchPath); err != nil {
		return fail("patch-readable", fmt.Sprintf("patch file is not readable: %v", err))
	}
	pass("patch-readable")

	toolName := v.ToolName
	if toolName == "" {
		toolName = DefaultToolName
	}
	lookup := v.Lookup
	if lookup == nil {
		lookup = DefaultLookup
	}
	if _, err := lookup(toolName); err != nil {
		return fail("tool-available", fmt.Sprintf("cannot apply patch: %v", err))
	}
	pass("tool-available")

	v.checkSignature(patchPath, &result)

	// Best-effort heuristic: the replace step needs room for a backup and
	// the patched copy. Probe errors are swallowed, not propagated.
	probe := v.freeSpace
	if probe == nil {
		probe = diskFree
	}
	if free, err := probe(filepath.Dir(sourcePath)); err == nil {
		need := uint64(sourceInfo.Size()) * 2
		if free < need {
			return fail("disk-space", fmt.Sprintf("insufficient disk space: need %d bytes free, have %d", need, free))
		}
		pass("disk-space")
	} else {
		log.Debug("disk space probe failed, skipping check", "path", sourcePath, "error", err)
	}

	result.OK = true
	return result
}

// checkSignature compares the patch file's leading bytes against the VCDIFF
// magic. Advisory only.
func (v *Validator) checkSignature(patchPath string, result *ValidationResult) {
	f, err := os.Open(patchPath)
	if err != nil {
		return
	}
	defer f.Close()

	header := make([]byte, len(vcdiffMagic))
	_, err = io.ReadFull(f, header)
	switch {
	case err == nil:
		if bytes.Equal(header, vcdiffMagic) {
			result.Checks = append(result.Checks, Check{Name: "patch-signature", Passed: true})
			return
		}
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// Too short to carry the signature; fall through to the mismatch entry.
	default:
		return
	}

	msg := fmt.Sprintf("patch file %s does not start with the VCDIFF signature; the tool may still accept it", filepath.Base(patchPath))
	log.Warn("unexpected patch signature", "path", patchPath)
	result.Checks = append(result.Checks, Check{Name: "patch-signature", Passed: false, Message: msg})
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
