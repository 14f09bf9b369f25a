package delta

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/ba2tools/ba2patch/internal/progress"
)

// PatchRequest names the three files of a patch attempt. The source and
// patch files are never mutated; only OutputPath is created or overwritten.
type PatchRequest struct {
	SourcePath string `json:"sourcePath"`
	PatchPath  string `json:"patchPath"`
	OutputPath string `json:"outputPath"`
}

// PatchOutcome is the result of one patch attempt. Success implies the tool
// exited 0 and OutputPath exists.
type PatchOutcome struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath,omitempty"`
	ExitCode   int    `json:"exitCode"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Applier runs the external decoding tool to produce a patched copy of a
// file.
type Applier struct {
	ToolName string
	Lookup   ToolLookup
}

// NewApplier returns an Applier using the given lookup (nil means
// DefaultLookup) and the default tool name.
func NewApplier(lookup ToolLookup) *Applier {
	if lookup == nil {
		lookup = DefaultLookup
	}
	return &Applier{ToolName: DefaultToolName, Lookup: lookup}
}

// Apply invokes the tool in decode mode (-d -s <source> <patch> <output>)
// and waits for it to exit, observing ctx between the launch and the exit.
//
// Cancellation stops the wait and reports failure but does not terminate the
// already-launched process; the tool finishes (or fails) on its own and the
// output file state afterwards is whatever the tool left behind.
func (a *Applier) Apply(ctx context.Context, req PatchRequest, cb progress.Callback) PatchOutcome {
	fail := func(msg string) PatchOutcome {
		progress.Emit(cb, progress.StageFailed, 100, msg)
		return PatchOutcome{Success: false, ExitCode: -1, Error: msg}
	}

	if _, err := os.Stat(req.SourcePath); err != nil {
		return fail(fmt.Sprintf("source file not found: %s", req.SourcePath))
	}
	if _, err := os.Stat(req.PatchPath); err != nil {
		return fail(fmt.Sprintf("patch file not found: %s", req.PatchPath))
	}

	toolName := a.ToolName
	if toolName == "" {
		toolName = DefaultToolName
	}
	lookup := a.Lookup
	if lookup == nil {
		lookup = DefaultLookup
	}
	toolPath, err := lookup(toolName)
	if err != nil {
		return fail(err.Error())
	}

	progress.Emit(cb, progress.StageStarting, 0, "starting patch")

	// Deliberately not CommandContext: cancellation must not kill a child
	// that may be mid-write to the output file.
	cmd := exec.Command(toolPath, "-d", "-s", req.SourcePath, req.PatchPath, req.OutputPath)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Sprintf("failed to capture tool output: %v", err))
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fail(fmt.Sprintf("failed to capture tool output: %v", err))
	}

	log.Info("launching delta tool", "tool", toolPath, "source", req.SourcePath, "patch", req.PatchPath, "output", req.OutputPath)

	if err := cmd.Start(); err != nil {
		return fail(fmt.Sprintf("failed to start %s: %v", toolName, err))
	}

	// The tool gives no fine-grained progress; this is a coarse two-phase
	// signal, not a true percentage.
	progress.Emit(cb, progress.StagePatching, 50, "applying delta patch")

	var wg sync.WaitGroup
	var stdoutLines, stderrLines []string
	wg.Add(2)
	go func() {
		defer wg.Done()
		stdoutLines = collectLines(stdoutPipe, "stdout")
	}()
	go func() {
		defer wg.Done()
		stderrLines = collectLines(stderrPipe, "stderr")
	}()

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		log.Warn("patch cancelled; child process left running", "tool", toolPath)
		progress.Emit(cb, progress.StageFailed, 100, "Operation cancelled")
		return PatchOutcome{Success: false, ExitCode: -1, Error: "Operation cancelled"}
	case err = <-done:
	}

	outcome := PatchOutcome{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   strings.Join(stdoutLines, "\n"),
		Stderr:   strings.Join(stderrLines, "\n"),
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			outcome.ExitCode = -1
			outcome.Error = err.Error()
			progress.Emit(cb, progress.StageFailed, 100, outcome.Error)
			return outcome
		}
	}

	if outcome.ExitCode != 0 {
		outcome.Error = fmt.Sprintf("%s exited with code %d", toolName, outcome.ExitCode)
		log.Warn("delta tool failed", "exitCode", outcome.ExitCode, "stderr", outcome.Stderr)
		progress.Emit(cb, progress.StageFailed, 100, outcome.Error)
		return outcome
	}

	if _, err := os.Stat(req.OutputPath); err != nil {
		outcome.Error = fmt.Sprintf("tool exited 0 but output file %s was not created", req.OutputPath)
		progress.Emit(cb, progress.StageFailed, 100, outcome.Error)
		return outcome
	}

	outcome.Success = true
	outcome.OutputPath = req.OutputPath
	log.Info("patch applied", "output", req.OutputPath)
	progress.Emit(cb, progress.StageCompleted, 100, "patch applied")
	return outcome
}

// collectLines drains r line by line so large tool output never blocks the
// child on a full pipe.
func collectLines(r io.Reader, stream string) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		log.Debug("tool output", "stream", stream, "line", line)
	}
	return lines
}
