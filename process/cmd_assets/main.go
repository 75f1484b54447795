package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cmsops/pkg/config"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"
	"cmsops/process/assets"
)

func main() {
	dir := flag.String("dir", "public/assets", "directory to scan for images")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	maxBytes := flag.Int64("max-bytes", assets.DefaultMaxBytes, "downscale images larger than this before upload")
	folder := flag.String("folder", "", "CMS folder id for uploaded files")
	linkCollection := flag.String("link-collection", "", "collection whose items get the uploaded file")
	linkField := flag.String("link-field", "cover_image", "file field set on the matched item")
	matchField := flag.String("match-field", "slug", "item field compared with the slug of the file name")
	dryRun := flag.Bool("dry-run", true, "list what would be uploaded without uploading")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer log.Sync()

	client, err := directus.FromConfig(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := assets.Run(ctx, client, assets.Options{
		Dir:            *dir,
		Watch:          *watch,
		Workers:        *workers,
		MaxBytes:       *maxBytes,
		Folder:         *folder,
		LinkCollection: *linkCollection,
		LinkField:      *linkField,
		MatchField:     *matchField,
		DryRun:         *dryRun,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(sum)
	if *dryRun {
		fmt.Println("dry-run: no changes made. Use --dry-run=false to upload.")
	}
}
