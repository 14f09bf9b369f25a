package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/ba2tools/ba2patch/internal/batch"
	"github.com/ba2tools/ba2patch/internal/progress"
	"github.com/spf13/cobra"
)

var (
	batchTarget    string
	batchRecursive bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Patch every archive in a directory",
	Long:  `Patches the version byte of every BTDX archive in a directory. One bad file never aborts the run; Ctrl-C stops cleanly between files.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := targetVersion(batchTarget)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		recursive := batchRecursive || cfg.Recursive

		processor := batch.NewProcessor()
		if cfg.ArchiveExtension != "" {
			processor.Extension = cfg.ArchiveExtension
		}

		outcome, err := processor.ProcessDirectory(ctx, args[0], target, recursive, func(ev progress.Event) {
			if ev.Stage == progress.StagePatching {
				fmt.Printf("[%3.0f%%] %s\n", ev.Percent, ev.Message)
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("\n%d file(s): %d patched, %d already at %s, %d failed\n",
			outcome.TotalFiles, outcome.SuccessCount, outcome.SkippedCount, target, outcome.FailedCount)
		if outcome.Cancelled {
			fmt.Println("run was cancelled before all files were attempted")
		}

		if outcome.FailedCount > 0 {
			for _, r := range outcome.Results {
				if r.Status == batch.StatusFailed || r.Status == batch.StatusInvalid {
					fmt.Fprintf(os.Stderr, "  %s: %s\n", r.Path, r.Error)
				}
			}
			return fmt.Errorf("%d file(s) failed", outcome.FailedCount)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchTarget, "to", "", "target archive version (v1, v7, v8)")
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "recurse into subdirectories")
	rootCmd.AddCommand(batchCmd)
}
