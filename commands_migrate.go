package main

import (
	"fmt"

	"cmsops/pkg/migrate"

	"github.com/spf13/cobra"
)

var migrateDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run goose migrations",
}

var migrateBaselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Create or update the cmsops bookkeeping tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		return migrate.New(db.SQL(), zlog).Baseline(cmd.Context())
	},
}

var migrateRunCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a goose command (up, down, status, ...) over --dir",
	Args:  cobra.MinimumNArgs(1),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		command := args[0]
		if err := confirmDestructive(cmd, !dryRun && destructiveMigration(command)); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		runner := migrate.New(db.SQL(), zlog)
		if dryRun && command != "status" && command != "version" {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Planned actions:\n - goose %s %s\n", command, migrateDir)
			fmt.Fprintln(out, "dry-run: no changes made. Use --dry-run=false --yes to execute.")
			command = "status"
		}
		return runner.Run(cmd.Context(), command, migrateDir, args[1:]...)
	}),
}

// destructiveMigration reports goose commands that roll schema back.
func destructiveMigration(command string) bool {
	switch command {
	case "down", "reset", "redo":
		return true
	}
	return false
}

func init() {
	migrateRunCmd.Flags().StringVar(&migrateDir, "dir", "migrations", "directory with goose SQL files")
	migrateCmd.AddCommand(migrateBaselineCmd, migrateRunCmd)
	RootCmd.AddCommand(migrateCmd)
}
