package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"menuprice/pkg/config"
	"menuprice/pkg/menuimage"
	"menuprice/process/ingest"
)

// Registers images found in the upload directory as menu images; with -watch
// it keeps running and picks up new files as they are copied in.
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	dir := flag.String("dir", cfg.UploadBase, "directory to scan for menu images")
	watch := flag.Bool("watch", false, "watch directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	uploadedBy := flag.String("uploaded-by", "ingest", "username recorded on new images")
	dryRun := flag.Bool("dry-run", false, "list candidate files without touching the database")
	verbose := flag.Bool("verbose", false, "verbose per-file logging")
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	if *dryRun {
		files, err := ingest.ListImageFiles(*dir)
		if err != nil {
			logger.Error("list failed", "dir", *dir, "err", err)
			os.Exit(1)
		}
		for _, f := range files {
			logger.Info("candidate", "file", f)
		}
		logger.Info("dry-run", "dir", *dir, "files", len(files))
		return
	}

	if cfg.DBDSN == "" {
		logger.Error("DB_DSN must be set in environment to run this tool")
		os.Exit(1)
	}
	db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := ingest.New(*dir, menuimage.NewGormRepo(db), logger)
	in.UploadedBy = *uploadedBy
	in.MaxBytes = cfg.MaxUploadBytes
	if *workers > 0 {
		in.Workers = *workers
	}
	st, err := in.Scan(ctx)
	if err != nil {
		logger.Error("scan failed", "err", err)
		os.Exit(1)
	}
	logger.Info("scan done", "registered", st.Registered, "skipped", st.Skipped, "failed", st.Failed)

	if *watch {
		if err := in.Watch(ctx); err != nil {
			logger.Error("watch failed", "err", err)
			os.Exit(1)
		}
	}
}
