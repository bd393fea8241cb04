// cmd/carryover/main.go
//
// Entry point for the carryover CLI. Each unit of a document is built on its
// own; `capture` records the state a unit leaves behind and `reapply` restores
// it at the start of the next unit.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var projectDir string

var rootCmd = &cobra.Command{
	Use:           "carryover",
	Short:         "Carry persistent indicators across independently built units",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if projectDir != "" {
			return nil
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		projectDir = cwd
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "Project directory holding .carryover/ (default: current directory)")
	rootCmd.AddCommand(initCmd, captureCmd, reapplyCmd, browseCmd, inspectCmd, tagsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
