// Package sanitize empties content tables, for resetting a staging copy of
// the CMS database. CMS system tables are never touched.
package sanitize

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"cmsops/models"
	"cmsops/pkg/config"
	"cmsops/pkg/content"
	"cmsops/pkg/database"
	"cmsops/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

var ErrSystemTable = errors.New("refusing to truncate a CMS system table")

// DefaultTables lists every content table and its translations junction.
func DefaultTables() []string {
	var out []string
	for _, c := range content.All() {
		out = append(out, c.Name)
		if len(c.Translated) > 0 {
			out = append(out, c.TranslationsCollection())
		}
	}
	return out
}

type Options struct {
	Tables []string
	DryRun bool
	Yes    bool
	// Reseed puts the language rows back after truncating.
	Reseed bool
}

// Sanitize prints the tables it would truncate and truncates them when
// DryRun is off and Yes is set.
func Sanitize(ctx context.Context, db *database.DB, w io.Writer, opts Options, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	wanted := make([]string, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !database.ValidIdent(t) {
			log.Warn("skipping invalid table name", zap.String("table", t))
			continue
		}
		if strings.HasPrefix(t, "directus_") {
			return fmt.Errorf("%w: %s", ErrSystemTable, t)
		}
		wanted = append(wanted, t)
	}

	var existing []string
	for _, t := range wanted {
		ok, err := db.TableExists(ctx, t)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("table not found, skipping", zap.String("table", t))
			continue
		}
		existing = append(existing, t)
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "No requested tables present in the database; nothing to do.")
		return nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run: no changes made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive! Pass --yes to proceed.")
		return nil
	}

	quoted := make([]string, 0, len(existing))
	for _, t := range existing {
		quoted = append(quoted, database.QuoteIdent(t))
	}
	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
	log.Info("executing", zap.String("sql", stmt))
	tctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := db.Gorm.WithContext(tctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	fmt.Fprintf(w, "Truncated %d tables.\n", len(existing))

	if opts.Reseed {
		n, err := reseedLanguages(ctx, db)
		if err != nil {
			return fmt.Errorf("reseed: %w", err)
		}
		fmt.Fprintf(w, "Reseeded %d languages.\n", n)
	}
	return nil
}

// reseedLanguages inserts the platform languages, leaving existing codes
// alone.
func reseedLanguages(ctx context.Context, db *database.DB) (int, error) {
	rows := make([]models.Language, 0, len(content.Languages))
	for _, l := range content.Languages {
		rows = append(rows, models.Language{Code: l.Code, Name: l.Name, Direction: l.Direction})
	}
	err := db.Gorm.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Run is the flag-driven entry point used by process/cmd_sanitize.
func Run() {
	var (
		dryRun  = flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
		yes     = flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
		reseed  = flag.Bool("reseed", false, "After truncation, reseed the languages rows")
		tables  = flag.String("tables", strings.Join(DefaultTables(), ","), "Comma-separated list of content tables to truncate")
		envFile = flag.String("env-file", ".env", "dotenv file to load")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDB(); err != nil {
		log.Fatal(err)
	}
	zl := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer zl.Sync()

	db, err := database.Open(cfg.DSN(), zl, logger.GormLevel(cfg.Log.Level))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	opts := Options{Tables: strings.Split(*tables, ","), DryRun: *dryRun, Yes: *yes, Reseed: *reseed}
	if err := Sanitize(context.Background(), db, os.Stdout, opts, zl); err != nil {
		log.Fatalf("sanitize failed: %v", err)
	}
}
