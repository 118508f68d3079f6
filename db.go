package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menuprice/models"
	"menuprice/pkg/config"
)

func openDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN")
	}
	lvl := logger.Warn
	if cfg.LogLevel == "debug" {
		lvl = logger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{
		Logger:         logger.Default.LogMode(lvl),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// migrate creates or updates the schema. Models are migrated one at a time so
// a failure on one does not block the others; the first error is returned.
func migrate(db *gorm.DB) error {
	var first error
	for _, m := range []struct {
		table string
		model any
	}{
		{"users", &models.User{}},
		{"refresh_tokens", &models.RefreshToken{}},
		{"menu_images", &models.MenuImage{}},
		{"regions", &models.Region{}},
		{"price_updates", &models.PriceUpdate{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			slog.Warn("migration warning", "table", m.table, "err", err)
			if first == nil {
				first = fmt.Errorf("migrate %s: %w", m.table, err)
			}
		}
	}
	return first
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
