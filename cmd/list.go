/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/davidmying/wingman/internal/plan"
)

// listCmd prints the plans in each lifecycle location.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans in the proposed, approved, archive and retry locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LOCATION\tFILE\tREQUEST\tTRACE\tSTATUS")
		locations := []struct {
			name string
			dir  string
		}{
			{"proposed", ProposedDirPath()},
			{"approved", ApprovedDirPath()},
			{"archive", ArchiveDirPath()},
			{"retry", RetryDirPath()},
		}
		for _, loc := range locations {
			listLocation(w, loc.name, loc.dir)
		}
		return w.Flush()
	},
}

func listLocation(w *tabwriter.Writer, name, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		requestID, traceID, status := "-", "-", "-"
		if doc, err := os.ReadFile(filepath.Join(dir, entry.Name())); err == nil {
			if meta, _, err := plan.Parse(string(doc)); err == nil {
				requestID, traceID, status = meta.RequestID, meta.TraceID, string(meta.Status)
				if len(traceID) > 8 {
					traceID = traceID[:8]
				}
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, entry.Name(), requestID, traceID, status)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
