package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"cmsops/pkg/config"
	"cmsops/pkg/content"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"

	"github.com/brianvoe/gofakeit/v7"
)

// Fills a staging CMS with fake content for front-end work.
func main() {
	collection := flag.String("collection", "destinations", "content collection to seed")
	count := flag.Int("count", 10, "number of items")
	seed := flag.Uint64("seed", 0, "faker seed (0 = random)")
	dryRun := flag.Bool("dry-run", true, "print the items without creating them")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()

	c, ok := content.Lookup(*collection)
	if !ok {
		log.Fatalf("unknown collection %q (known: %v)", *collection, content.Names())
	}
	if *count <= 0 {
		log.Fatal("--count must be positive")
	}
	f := gofakeit.New(*seed)

	var client *directus.Client
	if !*dryRun {
		cfg, err := config.Load(*envFile)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		zl := logger.Must(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if client, err = directus.FromConfig(cfg, zl); err != nil {
			log.Fatal(err)
		}
	}

	ctx := context.Background()
	for i := 0; i < *count; i++ {
		it := fakeItem(f, c)
		if *dryRun {
			fmt.Printf("DRY: would create %s %v\n", c.Name, it[c.SlugField])
			continue
		}
		created, err := client.CreateItem(ctx, c.Name, it)
		if err != nil {
			log.Fatalf("create %s #%d: %v", c.Name, i+1, err)
		}
		fmt.Printf("created %s %v (%v)\n", c.Name, created[c.PK], it[c.SlugField])
	}
	if *dryRun {
		fmt.Println("dry-run: no changes made. Use --dry-run=false to execute.")
	}
}
