// Package schema builds and applies direct-SQL changes to CMS-managed
// tables, keeping the CMS metadata rows (directus_fields,
// directus_relations) in step with the DDL.
package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cmsops/pkg/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoChange means the database already looks like the request.
	ErrNoChange = errors.New("nothing to change")
	// ErrNotConfirmed is returned by Apply for destructive plans without Confirm.
	ErrNotConfirmed = errors.New("destructive plan not confirmed")
	ErrInvalidName  = errors.New("invalid identifier")
)

// Step is one statement. SQL uses gorm's ? placeholders.
type Step struct {
	Desc string
	SQL  string
	Args []any
}

type Plan struct {
	Name        string
	Destructive bool
	Steps       []Step
}

func (p *Plan) add(desc, sql string, args ...any) {
	p.Steps = append(p.Steps, Step{Desc: desc, SQL: strings.TrimSpace(sql), Args: args})
}

// Print writes the plan the way the scripts show planned actions.
func (p *Plan) Print(w io.Writer) {
	fmt.Fprintf(w, "Planned actions (%s):\n", p.Name)
	for _, s := range p.Steps {
		fmt.Fprintf(w, " - %s\n", s.Desc)
		fmt.Fprintf(w, "     %s\n", oneLine(s.SQL))
	}
}

func oneLine(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// Executor runs plans against the database.
type Executor struct {
	DB *gorm.DB
	// Confirm allows destructive plans to run (the --yes flag).
	Confirm bool
	Out     io.Writer
	Log     *zap.Logger
}

// Apply prints the plan, and unless dryRun is set runs every step in one
// transaction. Any failing step rolls the whole plan back.
func (e *Executor) Apply(ctx context.Context, p *Plan, dryRun bool) error {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}
	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	p.Print(out)
	if dryRun {
		for _, s := range p.Steps {
			fmt.Fprintf(out, "DRY: would %s\n", s.Desc)
		}
		fmt.Fprintln(out, "dry-run: no changes made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if p.Destructive && !e.Confirm {
		fmt.Fprintln(out, "Destructive! Pass --yes to proceed.")
		return ErrNotConfirmed
	}
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, s := range p.Steps {
			if err := tx.Exec(s.SQL, s.Args...).Error; err != nil {
				return fmt.Errorf("step %d (%s): %w", i+1, s.Desc, err)
			}
			log.Debug("step applied", zap.String("plan", p.Name), zap.Int("step", i+1), zap.String("desc", s.Desc))
		}
		return nil
	})
	if err != nil {
		log.Error("plan rolled back", zap.String("plan", p.Name), zap.Error(err))
		return err
	}
	fmt.Fprintf(out, "%s done (%d steps)\n", p.Name, len(p.Steps))
	return nil
}

// Planner reads the live catalog to build plans.
type Planner struct {
	Catalog database.Catalog
}

func NewPlanner(cat database.Catalog) *Planner {
	return &Planner{Catalog: cat}
}

func checkIdents(names ...string) error {
	for _, n := range names {
		if !database.ValidIdent(n) {
			return fmt.Errorf("%w: %q", ErrInvalidName, n)
		}
	}
	return nil
}

func q(name string) string { return database.QuoteIdent(name) }

func (p *Planner) requireTable(ctx context.Context, table string) error {
	ok, err := p.Catalog.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %s does not exist", table)
	}
	return nil
}
