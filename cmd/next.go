/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidmying/wingman/internal/engine"
)

// nextCmd dequeues and executes the oldest approved plan.
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Execute the oldest approved plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, log, err := buildEngine()
		if err != nil {
			return err
		}
		defer log.Flush()

		result, err := eng.RunNext(cmd.Context())
		if errors.Is(err, engine.ErrNoPlans) {
			fmt.Println("Queue is empty.")
			return nil
		}
		if errors.Is(err, engine.ErrNoActions) {
			return fmt.Errorf("plan rejected: %w", err)
		}
		if err != nil {
			return err
		}
		if !result.Success {
			fmt.Fprintf(os.Stderr, "Task failed: %s\n", result.Error)
			return errors.New("task failed")
		}
		fmt.Printf("Task %s completed: %d action(s) on branch %s\n",
			result.TraceID, result.ActionsRun, result.BranchName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nextCmd)
}
