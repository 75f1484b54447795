// Package migrate applies versioned SQL with goose: the tools' own tables
// from the embedded baseline, and operator-provided migration directories.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	// BaselineTable tracks the embedded migrations, apart from the CMS's
	// own bookkeeping.
	BaselineTable = "cmsops_goose_version"
	// OperatorTable tracks migrations run from an operator directory.
	OperatorTable = "cmsops_operator_version"
)

// goose keeps its base FS, dialect and table name in package state.
var gooseMu sync.Mutex

var Commands = []string{"up", "up-by-one", "down", "redo", "status", "version", "reset"}

type Runner struct {
	DB  *sql.DB
	Log *zap.Logger
}

func New(db *sql.DB, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{DB: db, Log: log}
}

// Baseline brings the cmsops_* tables up to date.
func (r *Runner) Baseline(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := r.setup(embedMigrations, BaselineTable); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, r.DB, "migrations"); err != nil {
		return fmt.Errorf("baseline migrations: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, r.DB)
	if err != nil {
		return err
	}
	r.Log.Info("baseline up to date", zap.Int64("version", v))
	return nil
}

// Run executes a goose command against the SQL files in dir.
func (r *Runner) Run(ctx context.Context, command, dir string, args ...string) error {
	if !known(command) {
		return fmt.Errorf("unknown migrate command %q (want one of %v)", command, Commands)
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := r.setup(nil, OperatorTable); err != nil {
		return err
	}
	r.Log.Info("running migrations", zap.String("command", command), zap.String("dir", dir))
	if err := goose.RunContext(ctx, command, r.DB, dir, args...); err != nil {
		return fmt.Errorf("goose %s %s: %w", command, dir, err)
	}
	return nil
}

func (r *Runner) setup(fsys fs.FS, table string) error {
	goose.SetBaseFS(fsys)
	goose.SetTableName(table)
	goose.SetLogger(gooseLogger{r.Log.Named("goose").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return nil
}

func known(command string) bool {
	for _, c := range Commands {
		if c == command {
			return true
		}
	}
	return false
}

// gooseLogger routes goose output through zap. Fatalf is downgraded to an
// error; goose only calls it from paths these tools do not use.
type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Errorf(format, v...) }

// BaselineFiles lists the embedded migration file names, oldest first.
func BaselineFiles() ([]string, error) {
	entries, err := fs.ReadDir(embedMigrations, "migrations")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out, nil
}
