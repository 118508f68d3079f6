package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"menuprice/pkg/account"
	"menuprice/pkg/config"
)

func main() {
	username := flag.String("username", "", "username to reset")
	password := flag.String("password", "", "new plaintext password (min 6 chars)")
	flag.Parse()
	if *username == "" || *password == "" {
		log.Fatal("--username and --password are required")
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := account.ResetPassword(context.Background(), account.NewGormStore(db), *username, *password); err != nil {
		log.Fatalf("reset failed: %v", err)
	}
	fmt.Printf("Password reset for user %s\n", *username)
}
