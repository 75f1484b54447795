package main

import (
	"fmt"
	"strings"

	"cmsops/pkg/audit"
	"cmsops/pkg/content"
	"cmsops/pkg/database"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"
	"cmsops/pkg/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sharedDB *database.DB

func newClient() (*directus.Client, error) {
	return directus.FromConfig(cfg, zlog)
}

// openDB connects once per process; later calls reuse the pool.
func openDB() (*database.DB, error) {
	if sharedDB != nil {
		return sharedDB, nil
	}
	if err := cfg.RequireDB(); err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.DSN(), zlog, logger.GormLevel(cfg.Log.Level))
	if err != nil {
		return nil, err
	}
	sharedDB = db
	return db, nil
}

func closeDB() {
	if sharedDB != nil {
		_ = sharedDB.Close()
		sharedDB = nil
	}
}

// recorder journals into cmsops_runs when a database is configured. REST
// commands still run when it is not reachable.
func recorder() *audit.Recorder {
	if cfg.RequireDB() != nil {
		return audit.NewRecorder(nil, zlog)
	}
	db, err := openDB()
	if err != nil {
		zlog.Warn("run journal disabled", zap.Error(err))
		return audit.NewRecorder(nil, zlog)
	}
	return audit.NewRecorder(db.Gorm, zlog)
}

// tracked wraps a mutating command with a cmsops_runs row.
func tracked(run func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rec := recorder()
		ctx := cmd.Context()
		r := rec.Start(ctx, cmd.CommandPath(), args, dryRun)
		err := run(cmd, args)
		rec.Finish(ctx, r, err)
		zlog.Debug("run finished", zap.String("command", r.Command), zap.String("status", r.Status))
		return err
	}
}

// confirmDestructive refuses a destructive run that lacks --yes.
func confirmDestructive(cmd *cobra.Command, destructive bool) error {
	if destructive && !yes {
		fmt.Fprintln(cmd.OutOrStdout(), "Destructive! Pass --yes to proceed.")
		return schema.ErrNotConfirmed
	}
	return nil
}

// collectionsArg resolves a comma list of content collections; empty means
// every known one.
func collectionsArg(list string) ([]content.Collection, error) {
	if strings.TrimSpace(list) == "" {
		return content.All(), nil
	}
	var out []content.Collection
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, ok := content.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown collection %q (known: %s)", name, strings.Join(content.Names(), ", "))
		}
		out = append(out, c)
	}
	return out, nil
}

func collectionNames(cs []content.Collection) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
