package main

import (
	"flag"
	"fmt"
	"log"

	"cmsops/models"
	"cmsops/pkg/config"
	"cmsops/pkg/database"
	"cmsops/pkg/logger"
	"cmsops/pkg/passwd"
)

// Resets a CMS user's password directly in directus_users, for when nobody
// can log in to do it through the API.
func main() {
	email := flag.String("email", "", "email of the user to reset")
	password := flag.String("password", "", "new plaintext password (min 8 chars)")
	envFile := flag.String("env-file", ".env", "dotenv file to load")
	flag.Parse()
	if *email == "" || *password == "" {
		log.Fatal("--email and --password are required")
	}
	if len(*password) < 8 {
		log.Fatal("password too short (min 8)")
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
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var user models.User
	if err := db.Gorm.Preload("Role").Where("LOWER(email) = LOWER(?)", *email).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	hash, err := passwd.Hash(*password)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	if err := db.Gorm.Model(&user).Update("password", hash).Error; err != nil {
		log.Fatalf("update failed: %v", err)
	}
	role := "no role"
	if user.Role != nil {
		role = "role " + user.Role.Name
	}
	fmt.Printf("Password reset for user %s (%s, %s)\n", *email, user.ID, role)
	if user.Status != "active" {
		fmt.Printf("note: user status is %q; the CMS only lets active users log in\n", user.Status)
	}
}
