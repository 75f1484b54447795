package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cmsops/pkg/config"
	"cmsops/pkg/content"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"
)

func main() {
	collections := flag.String("collections", strings.Join(content.Names(), ","), "comma-separated content collections")
	dryRun := flag.Bool("dry-run", true, "print the slugs without writing them")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	client, err := directus.FromConfig(cfg, zl)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	fmt.Println("Planned actions:")
	total := 0
	for _, name := range strings.Split(*collections, ",") {
		c, ok := content.Lookup(strings.TrimSpace(name))
		if !ok {
			log.Fatalf("unknown collection %q (known: %v)", name, content.Names())
		}
		n, err := backfill(ctx, client, c, *dryRun, os.Stdout)
		if err != nil {
			log.Fatalf("backfill failed: %v", err)
		}
		total += n
	}
	if *dryRun {
		fmt.Printf("dry-run: %d slugs to set, no changes made. Use --dry-run=false to execute.\n", total)
		return
	}
	fmt.Printf("set %d slugs\n", total)
}
