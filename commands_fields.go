package main

import (
	"fmt"
	"io"

	"cmsops/pkg/fields"

	"github.com/spf13/cobra"
)

var (
	trCollections string
	trKeyType     string
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Field metadata tweaks",
}

var fieldsApplyCmd = &cobra.Command{
	Use:   "apply <tweaks.yaml>",
	Short: "Patch field meta from a YAML list of {collection, field, meta}",
	Args:  cobra.ExactArgs(1),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		tweaks, err := fields.LoadTweaks(args[0])
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		res, err := fields.ApplyTweaks(cmd.Context(), client, tweaks, dryRun)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Planned actions:")
		for _, p := range res.Patched {
			fmt.Fprintf(out, " - patch %s\n", p)
		}
		for _, m := range res.Missing {
			fmt.Fprintf(out, " - missing %s, skipped\n", m)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d patched, %d unchanged, %d missing\n", len(res.Patched), len(res.Unchanged), len(res.Missing))
		dryRunNote(out)
		return nil
	}),
}

var translationsCmd = &cobra.Command{
	Use:   "translations",
	Short: "Translation junctions",
}

var translationsEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create <collection>_translations with its fields and relations",
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		cols, err := collectionsArg(trCollections)
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Planned actions:")
		for _, c := range cols {
			if len(c.Translated) == 0 {
				continue
			}
			spec := fields.SpecFor(c)
			if trKeyType != "" {
				spec.ParentKeyType = trKeyType
			}
			steps, err := fields.EnsureTranslations(cmd.Context(), client, spec, dryRun)
			printSteps(out, steps)
			if err != nil {
				return err
			}
		}
		dryRunNote(out)
		return nil
	}),
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "The languages collection",
}

var languagesEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the languages collection and its id-ID/en-US rows",
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		steps, err := fields.EnsureLanguages(cmd.Context(), client, dryRun)
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Planned actions:")
		printSteps(out, steps)
		if err != nil {
			return err
		}
		dryRunNote(out)
		return nil
	}),
}

func printSteps(w io.Writer, steps []fields.Step) {
	for _, s := range steps {
		fmt.Fprintf(w, " - %s\n", s)
	}
}

func dryRunNote(w io.Writer) {
	if dryRun {
		fmt.Fprintln(w, "dry-run: no changes made. Use --dry-run=false --yes to execute.")
	}
}

func init() {
	translationsEnsureCmd.Flags().StringVar(&trCollections, "collections", "", "comma separated collections (default: all translated ones)")
	translationsEnsureCmd.Flags().StringVar(&trKeyType, "parent-key-type", "", "CMS type of the parent key (default integer)")

	fieldsCmd.AddCommand(fieldsApplyCmd)
	translationsCmd.AddCommand(translationsEnsureCmd)
	languagesCmd.AddCommand(languagesEnsureCmd)
	RootCmd.AddCommand(fieldsCmd, translationsCmd, languagesCmd)
}
