package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"menuprice/process/sanitize"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
	yes := flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
	adminPassword := flag.String("admin-password", "", "After truncation, recreate user 'admin' with this password")
	tables := flag.String("tables", strings.Join(sanitize.DefaultTables, ","), "Comma-separated list of tables to truncate")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN must be set to run db_sanitize")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	valid, invalid := sanitize.TableNames(*tables)
	for _, n := range invalid {
		log.Printf("warning: skipping invalid table name '%s'", n)
	}
	opts := sanitize.Options{Tables: valid, DryRun: *dryRun, Yes: *yes, AdminPassword: *adminPassword}
	if err := sanitize.Run(context.Background(), os.Stdout, db, opts); err != nil {
		log.Fatal(err)
	}
}
