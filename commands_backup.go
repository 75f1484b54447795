package main

import (
	"errors"
	"fmt"
	"strings"

	"cmsops/pkg/backup"

	"github.com/spf13/cobra"
)

var (
	exportCollections string
	exportFormats     string
	exportDir         string
	exportSchema      bool
	exportUpload      bool

	importOpts backup.ImportOptions
	importMode string
)

var errS3Disabled = errors.New("S3 upload needs S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY")

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export, import and ship collection backups",
}

var backupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export collections to JSON and/or CSV with a manifest",
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		formats, err := backup.ParseFormats(exportFormats)
		if err != nil {
			return err
		}
		names, err := exportNames()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		dir := exportDir
		if dir == "" {
			dir = cfg.Backup.Dir
		}
		ex := backup.NewExporter(client, dir, zlog)
		ex.SourceName = client.BaseURL()
		ex.Schema = exportSchema
		out, m, err := ex.Export(cmd.Context(), names, formats)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, e := range m.Collections {
			fmt.Fprintf(w, " - %s: %d items (%s)\n", e.Collection, e.Count, strings.Join(e.Files, ", "))
		}
		for _, s := range m.Skipped {
			fmt.Fprintf(w, "skip: %s (not in CMS)\n", s)
		}
		fmt.Fprintf(w, "backup written to %s\n", out)
		if exportUpload {
			return uploadDir(cmd, out)
		}
		return nil
	}),
}

// exportNames defaults to every content collection, its translations and
// the languages table.
func exportNames() ([]string, error) {
	cols, err := collectionsArg(exportCollections)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
		if len(c.Translated) > 0 {
			names = append(names, c.TranslationsCollection())
		}
	}
	if exportCollections == "" {
		names = append(names, "languages")
	}
	return names, nil
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file> [file...]",
	Short: "Import items from exported .json or .csv files",
	Args:  cobra.MinimumNArgs(1),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		opts := importOpts
		opts.Mode = backup.Mode(importMode)
		if err := confirmDestructive(cmd, !dryRun && opts.Mode == backup.ModeUpsert); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		opts.DryRun = dryRun
		im := backup.NewImporter(client, zlog)
		w := cmd.OutOrStdout()
		for _, path := range args {
			res, err := im.Import(cmd.Context(), path, opts)
			fmt.Fprintf(w, " - %s: %s\n", path, res)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
		}
		dryRunNote(w)
		return nil
	}),
}

var backupUploadCmd = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Copy a backup directory to the configured S3 bucket",
	Args:  cobra.ExactArgs(1),
	RunE: tracked(func(cmd *cobra.Command, args []string) error {
		return uploadDir(cmd, args[0])
	}),
}

func uploadDir(cmd *cobra.Command, dir string) error {
	if !cfg.S3Enabled() {
		return errS3Disabled
	}
	up, err := backup.NewS3Uploader(cmd.Context(), cfg.S3, zlog)
	if err != nil {
		return err
	}
	keys, err := up.UploadDir(cmd.Context(), dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files to s3://%s\n", len(keys), cfg.S3.Bucket)
	return nil
}

func init() {
	f := backupExportCmd.Flags()
	f.StringVar(&exportCollections, "collections", "", "comma separated collections (default: all content)")
	f.StringVar(&exportFormats, "format", "json", "json, csv or json,csv")
	f.StringVar(&exportDir, "dir", "", "backup root (default BACKUP_DIR)")
	f.BoolVar(&exportSchema, "schema", true, "include a schema snapshot")
	f.BoolVar(&exportUpload, "upload", false, "copy the backup to S3 afterwards")

	fi := backupImportCmd.Flags()
	fi.StringVar(&importOpts.Collection, "collection", "", "target collection (default: from the file)")
	fi.StringVar(&importMode, "mode", string(backup.ModeSkip), "skip or upsert existing items")
	fi.StringVar(&importOpts.PK, "pk", "id", "primary key field")
	fi.BoolVar(&importOpts.StripSystem, "strip-system", true, "drop user_created/date_created/... before writing")

	backupCmd.AddCommand(backupExportCmd, backupImportCmd, backupUploadCmd)
	RootCmd.AddCommand(backupCmd)
}
