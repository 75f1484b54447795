package main

import (
	"fmt"

	"cmsops/pkg/permissions"

	"github.com/spf13/cobra"
)

var (
	permRole        string
	permCollections string
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Inspect and repair CMS permissions",
}

var permissionsRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Create or patch the public read permissions the site needs",
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		target := permissions.Target{Role: permRole, Policy: cfg.Directus.PublicPolicy}
		if permRole != "" {
			target.Policy = ""
		}
		rules := permissions.SiteRules()
		if permCollections != "" {
			cols, err := collectionsArg(permCollections)
			if err != nil {
				return err
			}
			rules = permissions.PublicRead(collectionNames(cols)...)
		}
		res, err := permissions.Repair(cmd.Context(), client, rules, target, dryRun)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Planned actions for %s:\n", target)
		for _, ch := range res.Changes {
			fmt.Fprintf(out, " - %s\n", ch)
		}
		if err != nil {
			return err
		}
		if dryRun {
			fmt.Fprintln(out, "dry-run: no changes made. Use --dry-run=false --yes to execute.")
			return nil
		}
		fmt.Fprintf(out, "%d created, %d updated, %d unchanged\n", res.Created, res.Updated, res.Unchanged)
		return nil
	}),
}

func init() {
	f := permissionsRepairCmd.Flags()
	f.StringVar(&permRole, "role", "", "role id to repair instead of the public policy/role")
	f.StringVar(&permCollections, "collections", "", "comma separated collections (default: site rules)")
	permissionsCmd.AddCommand(permissionsRepairCmd)
	RootCmd.AddCommand(permissionsCmd)
}
