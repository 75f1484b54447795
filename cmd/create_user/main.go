package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cmsops/pkg/config"
	"cmsops/pkg/directus"
	"cmsops/pkg/logger"
)

func main() {
	role := flag.String("role", "Editor", "CMS role name")
	first := flag.String("first-name", "", "first name")
	last := flag.String("last-name", "", "last name")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/create_user [flags] <email> <password>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	email, password := flag.Arg(0), flag.Arg(1)
	if len(password) < 8 {
		log.Fatal("password too short (min 8)")
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

	existing, err := client.FindUser(ctx, email)
	if err != nil {
		log.Fatalf("look up user: %v", err)
	}
	if existing != nil {
		fmt.Printf("user %s already exists (id=%s)\n", email, existing.ID)
		return
	}
	r, err := client.FindRole(ctx, *role)
	if err != nil {
		log.Fatal(err)
	}
	u, err := client.CreateUser(ctx, directus.User{
		Email:     email,
		Password:  password,
		FirstName: *first,
		LastName:  *last,
		Role:      r.ID,
		Status:    "active",
	})
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%s role=%s\n", email, u.ID, r.Name)
}
