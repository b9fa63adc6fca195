/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidmying/wingman/internal/audit"
	"github.com/davidmying/wingman/internal/lease"
)

// leaseCmd groups lease inspection and recovery commands.
var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Inspect and recover the lease table",
}

var leaseListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show currently held leases",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := lease.NewStore(LeaseFilePath())
		if err != nil {
			return err
		}
		leases, err := store.List()
		if err != nil {
			return err
		}
		if len(leases) == 0 {
			fmt.Println("No leases held.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RESOURCE\tHOLDER\tACQUIRED")
		for _, l := range leases {
			fmt.Fprintf(w, "%s\t%s\t%s\n", l.Resource, l.Holder, l.AcquiredAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

// leaseReleaseCmd is the crash-recovery hook: leases have no expiry, so an
// operator clears a dead holder's lease explicitly.
var leaseReleaseCmd = &cobra.Command{
	Use:   "force-release <resource>",
	Short: "Forcibly release a lease regardless of holder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := lease.NewStore(LeaseFilePath())
		if err != nil {
			return err
		}
		log := audit.NewSyncLog(ActivityLogPath())
		store.SetAuditor(log)
		if err := store.ForceRelease(args[0]); err != nil {
			return err
		}
		fmt.Printf("Released %s\n", args[0])
		return nil
	},
}

func init() {
	leaseCmd.AddCommand(leaseListCmd)
	leaseCmd.AddCommand(leaseReleaseCmd)
	rootCmd.AddCommand(leaseCmd)
}
