package delta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLookup(path string) ToolLookup {
	return func(string) (string, error) { return path, nil }
}

func failingLookup(name string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// vcdiffPatch is a minimal byte blob carrying the VCDIFF signature.
func vcdiffPatch(t *testing.T, dir string) string {
	t.Helper()
	return writeFile(t, dir, "update.xdelta", []byte{0xD6, 0xC3, 0xC4, 0x00, 0x01, 0x02})
}

func TestValidateHappyPath(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("original binary"))
	patch := vcdiffPatch(t, dir)

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	result := v.Validate(source, patch)

	assert.True(t, result.OK)
	assert.Empty(t, result.Reason)
	for _, check := range result.Checks {
		assert.True(t, check.Passed, check.Name)
	}
}

func TestValidateMissingSource(t *testing.T) {
	dir := t.TempDir()
	patch := vcdiffPatch(t, dir)

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	result := v.Validate(filepath.Join(dir, "missing.exe"), patch)

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "not found")
}

func TestValidateMissingPatch(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("original binary"))

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	result := v.Validate(source, filepath.Join(dir, "missing.xdelta"))

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "patch file not found")
}

func TestValidateToolNotFound(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("original binary"))
	patch := vcdiffPatch(t, dir)

	v := NewValidator(failingLookup)
	result := v.Validate(source, patch)

	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "delta tool not found")
}

func TestValidateSignatureMismatchIsSoft(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("original binary"))
	patch := writeFile(t, dir, "weird.xdelta", []byte("not a vcdiff stream"))

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	result := v.Validate(source, patch)

	// Warn-only: the tool may still accept nonconforming input.
	assert.True(t, result.OK)

	sigCheck := findCheck(result, "patch-signature")
	require.NotNil(t, sigCheck)
	assert.False(t, sigCheck.Passed)
	assert.NotEmpty(t, sigCheck.Message)
}

func TestValidateTruncatedPatchSignature(t *testing.T) {
	for name, content := range map[string][]byte{
		"empty":     {},
		"two bytes": {0xD6, 0xC3},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			source := writeFile(t, dir, "game.exe", []byte("original binary"))
			patch := writeFile(t, dir, "short.xdelta", content)

			v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
			result := v.Validate(source, patch)

			assert.True(t, result.OK)
			sigCheck := findCheck(result, "patch-signature")
			require.NotNil(t, sigCheck, "a too-short patch still gets the advisory entry")
			assert.False(t, sigCheck.Passed)
		})
	}
}

func findCheck(result ValidationResult, name string) *Check {
	for i := range result.Checks {
		if result.Checks[i].Name == name {
			return &result.Checks[i]
		}
	}
	return nil
}

func TestValidateInsufficientDiskSpace(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("sixteen byte bin"))
	patch := vcdiffPatch(t, dir)

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	v.freeSpace = func(string) (uint64, error) { return 8, nil }

	result := v.Validate(source, patch)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "insufficient disk space")
}

func TestValidateDiskProbeErrorSwallowed(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("original binary"))
	patch := vcdiffPatch(t, dir)

	v := NewValidator(fixedLookup("/opt/tools/xdelta3"))
	v.freeSpace = func(string) (uint64, error) { return 0, errors.New("statfs unsupported") }

	result := v.Validate(source, patch)
	assert.True(t, result.OK)
}

func TestDefaultLookupFindsToolInPath(t *testing.T) {
	dir := t.TempDir()
	tool := writeFile(t, dir, exeName("faketool"), []byte("#!/bin/sh\n"))
	require.NoError(t, os.Chmod(tool, 0755))
	t.Setenv("PATH", dir)

	path, err := DefaultLookup("faketool")
	require.NoError(t, err)
	assert.Equal(t, tool, path)
}

func TestDefaultLookupNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := DefaultLookup("definitely-not-a-real-tool")
	assert.ErrorIs(t, err, ErrToolNotFound)
}
