/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/davidmying/wingman/internal/plan"
	"github.com/davidmying/wingman/models"
)

// approveCmd promotes a proposed plan into the approved queue.
var approveCmd = &cobra.Command{
	Use:   "approve [plan-file]",
	Short: "Approve a proposed plan for execution",
	Long: `Approve rewrites a plan's status to "approved" and moves it into the
approved queue. Without an argument it offers an interactive selection of the
proposed plans.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			selected, err := selectProposedPlan()
			if err != nil {
				return err
			}
			path = selected
		}

		doc, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read plan %s: %w", path, err)
		}
		meta, _, err := plan.Parse(string(doc))
		if err != nil {
			return fmt.Errorf("plan %s is not valid: %w", path, err)
		}
		updated, err := plan.RewriteStatus(string(doc), models.StatusApproved)
		if err != nil {
			return fmt.Errorf("failed to update plan status: %w", err)
		}

		if err := os.MkdirAll(ApprovedDirPath(), 0o755); err != nil {
			return fmt.Errorf("failed to create approved directory: %w", err)
		}
		dest := filepath.Join(ApprovedDirPath(), filepath.Base(path))
		if err := os.WriteFile(dest, []byte(updated), 0o644); err != nil {
			return fmt.Errorf("failed to write approved plan: %w", err)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove proposed plan: %w", err)
		}

		fmt.Printf("Approved %s (trace %s) -> %s\n", meta.RequestID, meta.TraceID, dest)
		return nil
	},
}

// selectProposedPlan prompts the user to pick one of the proposed plans.
func selectProposedPlan() (string, error) {
	entries, err := os.ReadDir(ProposedDirPath())
	if err != nil {
		return "", ErrNoPlansFound
	}

	var paths []string
	var labels []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		p := filepath.Join(ProposedDirPath(), entry.Name())
		label := entry.Name()
		if doc, err := os.ReadFile(p); err == nil {
			if meta, _, err := plan.Parse(string(doc)); err == nil {
				label = fmt.Sprintf("%s  (%s)", entry.Name(), meta.RequestID)
			}
		}
		paths = append(paths, p)
		labels = append(labels, label)
	}
	if len(paths) == 0 {
		return "", ErrNoPlansFound
	}

	prompt := promptui.Select{
		Label: "Select a plan to approve",
		Items: labels,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return paths[idx], nil
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
