package main

import (
	"fmt"
	"text/tabwriter"

	"cmsops/pkg/directus"

	"github.com/spf13/cobra"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List flows and switch them on or off",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flows with status and trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		flows, err := client.ListFlows(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tTRIGGER")
		for _, f := range flows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.Name, f.Status, f.Trigger)
		}
		return tw.Flush()
	},
}

var flowsSetStatusCmd = &cobra.Command{
	Use:   "set-status <id|name> <active|inactive>",
	Short: "Activate or deactivate a flow",
	Args:  cobra.ExactArgs(2),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		status := args[1]
		if status != directus.FlowActive && status != directus.FlowInactive {
			return fmt.Errorf("status %q: want %s or %s", status, directus.FlowActive, directus.FlowInactive)
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		flows, err := client.ListFlows(cmd.Context())
		if err != nil {
			return err
		}
		var flow *directus.Flow
		for i := range flows {
			if flows[i].ID == args[0] || flows[i].Name == args[0] {
				flow = &flows[i]
				break
			}
		}
		if flow == nil {
			return fmt.Errorf("flow %q not found", args[0])
		}
		out := cmd.OutOrStdout()
		if flow.Status == status {
			fmt.Fprintf(out, "skip: flow %s already %s\n", flow.Name, status)
			return nil
		}
		fmt.Fprintf(out, "Planned actions:\n - set flow %s (%s) %s -> %s\n", flow.Name, flow.ID, flow.Status, status)
		if dryRun {
			dryRunNote(out)
			return nil
		}
		if _, err := client.UpdateFlowStatus(cmd.Context(), flow.ID, status); err != nil {
			return err
		}
		fmt.Fprintf(out, "flow %s is now %s\n", flow.Name, status)
		return nil
	}),
}

func init() {
	flowsCmd.AddCommand(flowsListCmd, flowsSetStatusCmd)
	RootCmd.AddCommand(flowsCmd)
}
