package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"cmsops/pkg/audit"

	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the cmsops run journal",
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the latest recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		runs, err := audit.NewRecorder(db.Gorm, zlog).Recent(cmd.Context(), auditLimit)
		if err != nil {
			return fmt.Errorf("read cmsops_runs (run migrate baseline first?): %w", err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTARTED\tCOMMAND\tOPERATOR\tDRY\tSTATUS\tERROR")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s %s\t%s\t%t\t%s\t%s\n",
				r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Command, r.Args, r.Operator, r.DryRun, r.Status, r.Error)
		}
		return tw.Flush()
	},
}

func init() {
	auditRunsCmd.Flags().IntVar(&auditLimit, "limit", 20, "number of runs to show")
	auditCmd.AddCommand(auditRunsCmd)
	RootCmd.AddCommand(auditCmd)
}
