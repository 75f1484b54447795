package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cmsops/pkg/config"
	"cmsops/pkg/database"
	"cmsops/pkg/logger"
	"cmsops/process/report"
)

func main() {
	collection := flag.String("collection", "events", "content collection to report on")
	month := flag.String("month", "", "month to report (YYYY-MM), default current month")
	list := flag.Bool("list", false, "list matching items")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.RequireDB(); err != nil {
		fmt.Fprintf(os.Stderr, "%v; export and retry\n", err)
		os.Exit(2)
	}
	log := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer log.Sync()

	db, err := database.Open(cfg.DSN(), log, logger.GormLevel(cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	m := *month
	if m == "" {
		m = report.CurrentMonth()
	}
	if err := report.RunReport(context.Background(), db.Gorm, os.Stdout, *collection, m, *list); err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}
}
