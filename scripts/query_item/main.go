package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"cmsops/pkg/config"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"
)

func main() {
	collection := flag.String("collection", "", "collection name")
	id := flag.String("id", "", "primary key of the item")
	slug := flag.String("slug", "", "look the item up by slug instead of id")
	fields := flag.String("fields", "*,translations.*", "comma-separated fields to fetch")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()
	if *collection == "" || (*id == "" && *slug == "") {
		log.Fatal("--collection and one of --id or --slug are required")
	}
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
	fl := strings.Split(*fields, ",")

	var item directus.Item
	if *id != "" {
		item, err = client.GetItem(ctx, *collection, *id, fl...)
	} else {
		var items []directus.Item
		items, err = client.ListItems(ctx, *collection, directus.Query{Fields: fl, Filter: directus.Eq("slug", *slug), Limit: 1})
		if err == nil && len(items) == 0 {
			log.Fatalf("no %s item with slug %q", *collection, *slug)
		}
		if err == nil {
			item = items[0]
		}
	}
	if directus.IsMissing(err) {
		log.Fatalf("%s item not found (or not readable): %v", *collection, err)
	}
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(item); err != nil {
		log.Fatal(err)
	}
}
