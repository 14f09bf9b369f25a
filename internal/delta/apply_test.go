package delta

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ba2tools/ba2patch/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes a shell script standing in for the decoder. Argument order
// matches the decode invocation: $1=-d $2=-s $3=source $4=patch $5=output.
func fakeTool(t *testing.T, dir, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool is a shell script")
	}
	path := filepath.Join(dir, "xdelta3")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestApplySuccess(t *testing.T) {
	dir := t.TempDir()
	tool := fakeTool(t, dir, `cat "$3" "$4" > "$5"
echo decoded
`)
	source := writeFile(t, dir, "game.exe", []byte("base-"))
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))
	output := filepath.Join(dir, "game.exe.patched")

	var stages []progress.Stage
	a := NewApplier(fixedLookup(tool))
	outcome := a.Apply(context.Background(), PatchRequest{
		SourcePath: source,
		PatchPath:  patch,
		OutputPath: output,
	}, func(ev progress.Event) { stages = append(stages, ev.Stage) })

	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Equal(t, output, outcome.OutputPath)
	assert.Equal(t, "decoded", outcome.Stdout)
	assert.Empty(t, outcome.Error)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "base-delta", string(data))

	// Inputs are never mutated.
	src, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, "base-", string(src))
	pat, err := os.ReadFile(patch)
	require.NoError(t, err)
	assert.Equal(t, "delta", string(pat))

	assert.Equal(t, []progress.Stage{progress.StageStarting, progress.StagePatching, progress.StageCompleted}, stages)
}

func TestApplyToolFailure(t *testing.T) {
	dir := t.TempDir()
	tool := fakeTool(t, dir, `echo boom >&2
exit 3
`)
	source := writeFile(t, dir, "game.exe", []byte("base"))
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))

	a := NewApplier(fixedLookup(tool))
	outcome := a.Apply(context.Background(), PatchRequest{
		SourcePath: source,
		PatchPath:  patch,
		OutputPath: filepath.Join(dir, "out"),
	}, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, 3, outcome.ExitCode)
	assert.Equal(t, "boom", outcome.Stderr)
	assert.Contains(t, outcome.Error, "exited with code 3")
}

func TestApplyExitZeroWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	tool := fakeTool(t, dir, "exit 0\n")
	source := writeFile(t, dir, "game.exe", []byte("base"))
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))

	a := NewApplier(fixedLookup(tool))
	outcome := a.Apply(context.Background(), PatchRequest{
		SourcePath: source,
		PatchPath:  patch,
		OutputPath: filepath.Join(dir, "out"),
	}, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, 0, outcome.ExitCode)
	assert.Contains(t, outcome.Error, "was not created")
}

func TestApplyMissingSource(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))

	a := NewApplier(fixedLookup("/opt/tools/xdelta3"))
	outcome := a.Apply(context.Background(), PatchRequest{
		SourcePath: filepath.Join(dir, "missing.exe"),
		PatchPath:  patch,
		OutputPath: filepath.Join(dir, "out"),
	}, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.Contains(t, outcome.Error, "source file not found")
}

func TestApplyToolNotFound(t *testing.T) {
	dir := t.TempDir()
	source := writeFile(t, dir, "game.exe", []byte("base"))
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))

	a := NewApplier(failingLookup)
	outcome := a.Apply(context.Background(), PatchRequest{
		SourcePath: source,
		PatchPath:  patch,
		OutputPath: filepath.Join(dir, "out"),
	}, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.Contains(t, outcome.Error, "delta tool not found")
}

func TestApplyCancellation(t *testing.T) {
	dir := t.TempDir()
	tool := fakeTool(t, dir, "sleep 5\n")
	source := writeFile(t, dir, "game.exe", []byte("base"))
	patch := writeFile(t, dir, "update.xdelta", []byte("delta"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	a := NewApplier(fixedLookup(tool))
	outcome := a.Apply(ctx, PatchRequest{
		SourcePath: source,
		PatchPath:  patch,
		OutputPath: filepath.Join(dir, "out"),
	}, nil)

	assert.False(t, outcome.Success)
	assert.Equal(t, -1, outcome.ExitCode)
	assert.Equal(t, "Operation cancelled", outcome.Error)
	assert.Less(t, time.Since(start), 3*time.Second, "cancellation must not wait for the tool")
}
