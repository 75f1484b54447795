// Command cmsops bundles the operator tasks for the tourism CMS: schema
// changes, permission repair, backups, field tweaks and diagnostics.
package main

import (
	"fmt"
	"os"

	"cmsops/pkg/config"
	"cmsops/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	dryRun  bool
	yes     bool

	cfg  *config.Config
	zlog *zap.Logger
)

var RootCmd = &cobra.Command{
	Use:   "cmsops",
	Short: "Operator toolkit for the tourism content CMS",
	Long: `cmsops runs one-shot maintenance tasks against the CMS REST API and
its Postgres database. Mutating commands default to --dry-run and print the
plan; pass --dry-run=false (and --yes for destructive ones) to execute.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return err
		}
		l, err := logger.New(logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: "stderr"})
		if err != nil {
			return err
		}
		cfg, zlog = c, l
		return nil
	},
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.BoolVar(&dryRun, "dry-run", true, "print planned actions without executing")
	pf.BoolVar(&yes, "yes", false, "confirm destructive actions")
}

func main() {
	err := RootCmd.Execute()
	closeDB()
	if zlog != nil {
		_ = zlog.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
