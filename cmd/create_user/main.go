package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/account"
	"menuprice/pkg/config"
)

func main() {
	role := flag.String("role", models.RoleEditor, "role for the new user (editor or administrator)")
	flag.Parse()
	if flag.NArg() < 2 {
		fmt.Println("usage: go run ./cmd/create_user [-role administrator] <username> <password>")
		os.Exit(2)
	}
	username, password := flag.Arg(0), flag.Arg(1)

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN not set in environment")
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}

	u, err := account.Register(context.Background(), account.NewGormStore(db), username, password, *role)
	if errors.Is(err, account.ErrUserExists) {
		fmt.Printf("user %s already exists\n", username)
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	fmt.Printf("created user %s id=%d role=%s\n", u.Username, u.ID, u.Role)
}
