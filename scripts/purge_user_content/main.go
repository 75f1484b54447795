package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cmsops/models"
	"cmsops/pkg/config"
	"cmsops/pkg/content"
	"cmsops/pkg/database"
	"cmsops/pkg/logger"
)

func main() {
	email := flag.String("email", "", "CMS user whose content is deleted (required)")
	collections := flag.String("collections", "", "comma separated collections (default: all content)")
	dry := flag.Bool("dry-run", true, "Preview actions without modifying the DB")
	yes := flag.Bool("yes", false, "Confirm destructive action when dry-run=false")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	if *email == "" {
		log.Fatal("--email is required")
	}
	cols := content.All()
	if *collections != "" {
		cols = nil
		for _, name := range strings.Split(*collections, ",") {
			c, ok := content.Lookup(strings.TrimSpace(name))
			if !ok {
				log.Fatalf("unknown collection %q", name)
			}
			cols = append(cols, c)
		}
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.RequireDB(); err != nil {
		log.Fatal(err)
	}
	zl := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	db, err := database.Open(cfg.DSN(), zl, logger.GormLevel(cfg.Log.Level))
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	var user models.User
	if err := db.Gorm.WithContext(ctx).Where("LOWER(email) = LOWER(?)", *email).First(&user).Error; err != nil {
		log.Fatalf("user lookup failed for %s: %v", *email, err)
	}
	targets, err := plan(ctx, db.Gorm, db, user.ID, cols)
	if err != nil {
		log.Fatal(err)
	}
	printPlan(os.Stdout, *email, targets)
	if len(targets) == 0 {
		return
	}
	if *dry {
		fmt.Println("dry-run: no changes made. Use --dry-run=false --yes to execute.")
		return
	}
	if !*yes {
		fmt.Println("Destructive! Pass --yes to proceed.")
		return
	}
	if err := purge(ctx, db.Gorm, user.ID, targets); err != nil {
		log.Fatalf("purge failed: %v", err)
	}
	fmt.Printf("cleanup done for %s\n", *email)
}
