package main

import (
	"errors"
	"time"

	"cmsops/pkg/content"
	"cmsops/pkg/diagnose"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	diagCollections string
	diagDB          bool
)

var errChecksFailed = errors.New("diagnostics failed")

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Report server health, auth and content consistency",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		cols, err := collectionsArg(diagCollections)
		if err != nil {
			return err
		}
		deps := diagnose.Deps{
			API:         client,
			Collections: cols,
			Languages:   content.LanguageCodes(),
			Log:         zlog,
			Now:         time.Now,
		}
		if diagDB {
			db, err := openDB()
			if err != nil {
				return err
			}
			deps.Catalog = db
		}
		report, err := diagnose.Run(cmd.Context(), deps)
		if report != nil {
			if perr := report.Print(cmd.OutOrStdout()); perr != nil {
				zlog.Warn("print report", zap.Error(perr))
			}
		}
		if err != nil {
			return err
		}
		if report.Failed() {
			return errChecksFailed
		}
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagCollections, "collections", "", "comma separated collections (default: all)")
	diagnoseCmd.Flags().BoolVar(&diagDB, "db", false, "also compare CMS collections with database tables")
	RootCmd.AddCommand(diagnoseCmd)
}
