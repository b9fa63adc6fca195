/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidmying/wingman/internal/watcher"
)

// serveCmd runs the long-lived worker over the approved queue.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the approved queue and execute plans as they arrive",
	Long: `Serve drains the approved queue, then watches it and executes each new plan
document. A single worker runs at a time; the lease table protects the
workspace if a second server is started by mistake.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, log, err := buildEngine()
		if err != nil {
			return err
		}
		defer log.Flush()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Watching %s (holder %s)\n", ApprovedDirPath(), eng.HolderID())
		if err := watcher.New(ApprovedDirPath(), eng).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("Shutting down.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
