/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCmd executes a specific plan document.
var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Execute a single plan document",
	Long: `Run leases the given plan document, executes its actions on a dedicated git
branch and archives it on success. On failure the working tree is rolled back
and the plan is parked in the retry directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, log, err := buildEngine()
		if err != nil {
			return err
		}
		defer log.Flush()

		result := eng.ProcessPlan(cmd.Context(), args[0])
		if !result.Success {
			fmt.Fprintf(os.Stderr, "Task failed: %s\n", result.Error)
			if result.SecondaryError != "" {
				fmt.Fprintf(os.Stderr, "Cleanup: %s\n", result.SecondaryError)
			}
			return fmt.Errorf("plan %s failed", args[0])
		}
		fmt.Printf("Task %s completed: %d action(s) on branch %s\n",
			result.TraceID, result.ActionsRun, result.BranchName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
