package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cmsops/pkg/schema"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Change tables directly in Postgres and keep the CMS metadata in step",
}

var (
	addColumn  schema.AddColumn
	dropColumn schema.DropColumn
	changePK   schema.ChangePK
	relation   schema.Relation
	fkTable    string
)

// applyPlan builds a plan against the live catalog and runs it through the
// executor. A plan with nothing to change is reported, not failed.
func applyPlan(cmd *cobra.Command, build func(ctx context.Context, p *schema.Planner) (*schema.Plan, error)) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	plan, err := build(ctx, schema.NewPlanner(db))
	if errors.Is(err, schema.ErrNoChange) {
		fmt.Fprintf(cmd.OutOrStdout(), "skip: %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	exec := &schema.Executor{DB: db.Gorm, Confirm: yes, Out: cmd.OutOrStdout(), Log: zlog}
	return exec.Apply(ctx, plan, dryRun)
}

var addColumnCmd = &cobra.Command{
	Use:   "add-column <table> <column>",
	Short: "Add a column and register it as a CMS field",
	Args:  cobra.ExactArgs(2),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		req := addColumn
		req.Table, req.Column = args[0], args[1]
		return applyPlan(cmd, func(ctx context.Context, p *schema.Planner) (*schema.Plan, error) {
			return p.PlanAddColumn(ctx, req)
		})
	}),
}

var dropColumnCmd = &cobra.Command{
	Use:   "drop-column <table> <column>",
	Short: "Drop a column with its field, relation and permission references",
	Args:  cobra.ExactArgs(2),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		req := dropColumn
		req.Table, req.Column = args[0], args[1]
		return applyPlan(cmd, func(ctx context.Context, p *schema.Planner) (*schema.Plan, error) {
			return p.PlanDropColumn(ctx, req)
		})
	}),
}

var changePKCmd = &cobra.Command{
	Use:   "change-pk <table>",
	Short: "Convert a primary key between uuid, integer and bigint",
	Args:  cobra.ExactArgs(1),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		req := changePK
		req.Table = args[0]
		return applyPlan(cmd, func(ctx context.Context, p *schema.Planner) (*schema.Plan, error) {
			return p.PlanChangePrimaryKey(ctx, req)
		})
	}),
}

var relationCmd = &cobra.Command{
	Use:   "relation <many_table>.<field> <one_table>",
	Short: "Ensure a many-to-one foreign key and its CMS relation",
	Args:  cobra.ExactArgs(2),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		table, field, ok := strings.Cut(args[0], ".")
		if !ok {
			return fmt.Errorf("want <table>.<field>, got %q", args[0])
		}
		req := relation
		req.ManyTable, req.ManyField, req.OneTable = table, field, args[1]
		return applyPlan(cmd, func(ctx context.Context, p *schema.Planner) (*schema.Plan, error) {
			return p.PlanEnsureRelation(ctx, req)
		})
	}),
}

var dropConstraintCmd = &cobra.Command{
	Use:   "drop-constraint <table> <name>",
	Short: "Drop a named constraint",
	Args:  cobra.ExactArgs(2),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		return applyPlan(cmd, func(ctx context.Context, p *schema.Planner) (*schema.Plan, error) {
			return p.PlanDropConstraint(ctx, args[0], args[1])
		})
	}),
}

var fksCmd = &cobra.Command{
	Use:   "fks",
	Short: "List foreign keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		fks, err := db.ForeignKeys(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		n := 0
		for _, fk := range fks {
			if fkTable != "" && fk.Table != fkTable && fk.RefTable != fkTable {
				continue
			}
			fmt.Fprintln(out, fk.String())
			n++
		}
		fmt.Fprintf(out, "%d foreign keys\n", n)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <collection>",
	Short: "Compare a collection's CMS field and relation rows with its table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		d, err := schema.Inspect(cmd.Context(), db.Gorm, db, args[0])
		if err != nil {
			return err
		}
		d.Print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	f := addColumnCmd.Flags()
	f.StringVar(&addColumn.Type, "type", "string", "CMS field type: "+strings.Join(schema.FieldTypes(), ", "))
	f.BoolVar(&addColumn.NotNull, "not-null", false, "add NOT NULL")
	f.StringVar(&addColumn.Default, "default", "", "column default (literal)")
	f.StringVar(&addColumn.Interface, "interface", "", "CMS interface (default depends on type)")
	f.StringVar(&addColumn.Note, "note", "", "field note shown in the CMS")

	dropColumnCmd.Flags().BoolVar(&dropColumn.Cascade, "cascade", false, "also drop constraints that reference the column")

	changePKCmd.Flags().StringVar(&changePK.To, "to", "uuid", "new key type: uuid, integer or bigint")
	changePKCmd.Flags().StringVar(&changePK.Column, "column", "", "expected key column (checked when set)")

	relationCmd.Flags().StringVar(&relation.OnDelete, "on-delete", "SET NULL", "SET NULL, CASCADE, RESTRICT or NO ACTION")

	fksCmd.Flags().StringVar(&fkTable, "table", "", "only keys on or pointing at this table")

	schemaCmd.AddCommand(addColumnCmd, dropColumnCmd, changePKCmd, relationCmd, dropConstraintCmd, fksCmd, inspectCmd)
	RootCmd.AddCommand(schemaCmd)
}
