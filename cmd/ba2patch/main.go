package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ba2tools/ba2patch/internal/archive"
	"github.com/ba2tools/ba2patch/internal/config"
	"github.com/ba2tools/ba2patch/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
	cfg     *config.Config
	logOut  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "ba2patch",
	Short: "BTDX archive version patcher",
	Long:  `ba2patch inspects and patches the version byte of BTDX game archives and applies xdelta3 binary patches to game executables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		output := io.Writer(nil)
		if cfg.LogFile != "" {
			rw, err := logging.NewRotatingWriter(cfg.LogFile, 10, 3)
			if err != nil {
				return err
			}
			logOut = rw
			output = rw
		}
		logging.Init(cfg.LogFormat, cfg.LogLevel, output)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logOut != nil {
			logOut.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ba2patch v%s\n", version)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Print header details of a BTDX archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := archive.Inspect(args[0])
		if err != nil {
			return err
		}
		if desc == nil {
			return fmt.Errorf("file not found: %s", args[0])
		}

		fmt.Printf("File:      %s\n", desc.FileName)
		fmt.Printf("Valid:     %v\n", desc.Valid)
		fmt.Printf("Version:   %s\n", desc.Version)
		fmt.Printf("Type:      %s\n", desc.Type)
		fmt.Printf("Size:      %d bytes\n", desc.SizeBytes)
		fmt.Printf("Read-only: %v\n", desc.ReadOnly)
		return nil
	},
}

var patchTarget string

var patchCmd = &cobra.Command{
	Use:   "patch <archive>",
	Short: "Patch the version byte of a single archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := targetVersion(patchTarget)
		if err != nil {
			return err
		}

		ok, err := archive.PatchVersion(args[0], target)
		if !ok {
			return fmt.Errorf("patch failed: %w", err)
		}

		fmt.Printf("%s is now %s\n", args[0], target)
		return nil
	},
}

// targetVersion resolves the --to flag, falling back to the configured
// default target.
func targetVersion(flag string) (archive.Version, error) {
	if flag == "" {
		flag = cfg.DefaultTarget
	}
	return archive.ParseVersion(flag)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ba2patch.yaml in the OS config dir or cwd)")

	patchCmd.Flags().StringVar(&patchTarget, "to", "", "target archive version (v1, v7, v8)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(patchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
