package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/ba2tools/ba2patch/internal/delta"
	"github.com/ba2tools/ba2patch/internal/progress"
	"github.com/ba2tools/ba2patch/internal/replace"
	"github.com/spf13/cobra"
)

var (
	deltaOutput  string
	deltaReplace bool
)

var deltaCmd = &cobra.Command{
	Use:   "delta <source> <patch>",
	Short: "Apply an xdelta3 binary patch to a file",
	Long:  `Runs the xdelta3 decoder to produce a patched copy of <source>. The source and patch files are never modified. With --replace, the patched copy is swapped into place behind a backup.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, patch := args[0], args[1]

		output := deltaOutput
		if output == "" {
			output = source + ".patched"
		}

		validator := delta.NewValidator(nil)
		applier := delta.NewApplier(nil)
		if cfg.DeltaTool != "" {
			validator.ToolName = cfg.DeltaTool
			applier.ToolName = cfg.DeltaTool
		}

		printStage(progress.StageValidating, "running pre-flight checks")
		result := validator.Validate(source, patch)
		for _, check := range result.Checks {
			if !check.Passed && check.Message != "" {
				fmt.Fprintf(os.Stderr, "warning: %s\n", check.Message)
			}
		}
		if !result.OK {
			return fmt.Errorf("validation failed: %s", result.Reason)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		outcome := applier.Apply(ctx, delta.PatchRequest{
			SourcePath: source,
			PatchPath:  patch,
			OutputPath: output,
		}, func(ev progress.Event) {
			printStage(ev.Stage, ev.Message)
		})

		if !outcome.Success {
			if outcome.Stderr != "" {
				fmt.Fprintln(os.Stderr, outcome.Stderr)
			}
			return fmt.Errorf("patch failed: %s", outcome.Error)
		}

		if !deltaReplace {
			fmt.Printf("patched copy written to %s\n", outcome.OutputPath)
			return nil
		}

		printStage(progress.StageReplacingFiles, "backing up and swapping in the patched file")
		replacer := &replace.Replacer{BackupSuffix: cfg.BackupSuffix}
		if err := replacer.ReplaceWithBackup(source, outcome.OutputPath); err != nil {
			return err
		}
		fmt.Printf("%s replaced (backup at %s)\n", source, replacer.BackupPath(source))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore a file from its backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replacer := &replace.Replacer{BackupSuffix: cfg.BackupSuffix}
		if err := replacer.Restore(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s restored from %s\n", args[0], replacer.BackupPath(args[0]))
		return nil
	},
}

func printStage(stage progress.Stage, message string) {
	if message == "" {
		fmt.Printf("[%s]\n", stage)
		return
	}
	fmt.Printf("[%s] %s\n", stage, message)
}

func init() {
	deltaCmd.Flags().StringVarP(&deltaOutput, "output", "o", "", "path for the patched copy (default <source>.patched)")
	deltaCmd.Flags().BoolVar(&deltaReplace, "replace", false, "swap the patched copy into place behind a backup")
	rootCmd.AddCommand(deltaCmd)
	rootCmd.AddCommand(restoreCmd)
}
