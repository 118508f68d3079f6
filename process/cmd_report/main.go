package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"menuprice/process/report"
)

func main() {
	username := flag.String("username", "", "editor to report for (default: everyone)")
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list matching rows")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	if err := report.Run(context.Background(), os.Stdout, db, *username, *month, *list); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
