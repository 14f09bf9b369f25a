// Package batch applies the archive version patcher across a directory,
// isolating per-file failures so one bad archive never aborts the run.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ba2tools/ba2patch/internal/archive"
	"github.com/ba2tools/ba2patch/internal/logging"
	"github.com/ba2tools/ba2patch/internal/progress"
)

var log = logging.L("batch")

// Status classifies the outcome of one file in a batch run.
type Status string

const (
	StatusPatched         Status = "patched"
	StatusAlreadyAtTarget Status = "already-at-target"
	StatusInvalid         Status = "invalid"
	StatusFailed          Status = "failed"
)

// FileResult is the outcome for a single archive.
type FileResult struct {
	Path            string          `json:"path"`
	PreviousVersion archive.Version `json:"previousVersion"`
	TargetVersion   archive.Version `json:"targetVersion"`
	Status          Status          `json:"status"`
	Error           string          `json:"error,omitempty"`
}

// Outcome aggregates a completed run. For every run, TotalFiles equals
// SuccessCount + SkippedCount + FailedCount; under cancellation it counts
// only the files attempted before the cancellation point.
type Outcome struct {
	TotalFiles   int          `json:"totalFiles"`
	SuccessCount int          `json:"successCount"`
	SkippedCount int          `json:"skippedCount"`
	FailedCount  int          `json:"failedCount"`
	Cancelled    bool         `json:"cancelled,omitempty"`
	Results      []FileResult `json:"results"`
}

// Processor walks a directory and patches each candidate archive in turn.
// Files are processed strictly sequentially, in enumeration order.
type Processor struct {
	// Extension selects candidate files; defaults to archive.Extension.
	Extension string
}

// NewProcessor returns a Processor for the conventional archive extension.
func NewProcessor() *Processor {
	return &Processor{Extension: archive.Extension}
}

// ProcessDirectory patches every candidate file under dir to target.
// Cancellation is checked between files only; a started single-file patch
// always completes so no archive is left half-mutated. The progress callback
// fires after each file with percentage (index+1)/total*100.
func (p *Processor) ProcessDirectory(ctx context.Context, dir string, target archive.Version, recursive bool, cb progress.Callback) (*Outcome, error) {
	files, err := p.enumerate(dir, recursive)
	if err != nil {
		return nil, err
	}

	log.Info("starting batch run", "dir", dir, "target", target.String(), "candidates", len(files), "recursive", recursive)

	outcome := &Outcome{Results: make([]FileResult, 0, len(files))}
	total := len(files)

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			log.Warn("batch run cancelled", "attempted", i, "total", total)
			outcome.Cancelled = true
			break
		}

		result := p.processFile(path, target)
		outcome.Results = append(outcome.Results, result)
		switch result.Status {
		case StatusPatched:
			outcome.SuccessCount++
		case StatusAlreadyAtTarget:
			outcome.SkippedCount++
		default:
			outcome.FailedCount++
		}

		progress.Emit(cb, progress.StagePatching,
			float64(i+1)/float64(total)*100,
			fmt.Sprintf("%s: %s", filepath.Base(path), result.Status))
	}

	outcome.TotalFiles = len(outcome.Results)

	stage := progress.StageCompleted
	if outcome.Cancelled {
		stage = progress.StageFailed
	}
	progress.Emit(cb, stage, 100, fmt.Sprintf("%d patched, %d skipped, %d failed",
		outcome.SuccessCount, outcome.SkippedCount, outcome.FailedCount))

	return outcome, nil
}

// processFile never lets an error escape; everything is folded into the
// FileResult so the loop continues to the next file.
func (p *Processor) processFile(path string, target archive.Version) FileResult {
	result := FileResult{Path: path, TargetVersion: target}

	desc, err := archive.Inspect(path)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		log.Warn("inspect failed", "path", path, "error", err)
		return result
	}
	if desc == nil || !desc.Valid {
		result.Status = StatusInvalid
		result.Error = "not a recognized BTDX archive"
		if desc != nil {
			result.PreviousVersion = desc.Version
		}
		return result
	}

	result.PreviousVersion = desc.Version
	if desc.Version == target {
		result.Status = StatusAlreadyAtTarget
		return result
	}

	if _, err := archive.PatchVersion(path, target); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		log.Warn("patch failed", "path", path, "error", err)
		return result
	}

	result.Status = StatusPatched
	return result
}

// enumerate lists candidate files in a stable order: os.ReadDir and
// filepath.WalkDir both yield lexically sorted entries.
func (p *Processor) enumerate(dir string, recursive bool) ([]string, error) {
	ext := p.Extension
	if ext == "" {
		ext = archive.Extension
	}

	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", dir, err)
		}
		var files []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
				continue
			}
			files = append(files, filepath.Join(dir, entry.Name()))
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", dir, err)
	}
	return files, nil
}
