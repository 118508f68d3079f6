package main

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"menuprice/pkg/account"
	"menuprice/pkg/config"
	"menuprice/pkg/imagestore"
	"menuprice/pkg/ledger"
	"menuprice/pkg/menuimage"
	"menuprice/pkg/ocr"
	"menuprice/pkg/ocr/tesseract"
	"menuprice/pkg/pipeline"
	"menuprice/pkg/region"
)

// app holds the service dependencies shared by the handlers.
type app struct {
	cfg       config.Config
	jwtSecret []byte
	log       *slog.Logger

	accounts account.Store
	images   menuimage.Repo
	store    imagestore.Store
	regions  region.Store
	ledger   ledger.Ledger
	ocr      *ocr.Adapter
	pipeline *pipeline.Pipeline
	ping     func(ctx context.Context) error
}

func buildApp(ctx context.Context, cfg config.Config, db *gorm.DB, logger *slog.Logger) (*app, error) {
	store, err := newImageStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		log:       logger,
		accounts:  account.NewGormStore(db),
		images:    menuimage.NewGormRepo(db),
		store:     store,
		regions:   region.NewGormStore(db),
		ledger:    ledger.NewGormLedger(db, cfg.DedupWindow),
		ping:      pingDB(db),
	}
	a.wireRecognition(newEngine(cfg, logger))
	return a, nil
}

// wireRecognition builds the OCR adapter and the pipeline on top of the stores.
func (a *app) wireRecognition(engine ocr.Engine) {
	a.ocr = &ocr.Adapter{
		Engine:  engine,
		Images:  a.store,
		Timeout: a.cfg.RecognitionTimeout,
		Logger:  a.log,
	}
	a.pipeline = pipeline.New(a.regions, a.ledger, a.ocr)
	a.pipeline.Workers = a.cfg.BatchWorkers
	a.pipeline.Logger = a.log
}

func newEngine(cfg config.Config, logger *slog.Logger) ocr.Engine {
	if cfg.OCREngine == "static" {
		return ocr.NewStaticEngine()
	}
	e := tesseract.New(cfg.OCRLanguages...)
	e.Logger = logger
	return e
}

func newImageStore(ctx context.Context, cfg config.Config) (*imagestore.Mux, error) {
	local, err := imagestore.NewLocal(cfg.UploadBase)
	if err != nil {
		return nil, err
	}
	mux := &imagestore.Mux{Primary: local, Local: local, HTTP: imagestore.NewHTTPFetcher(cfg.MaxUploadBytes)}
	if cfg.StorageBackend == "s3" {
		s3, err := imagestore.NewS3(ctx, imagestore.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Endpoint:  cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		mux.Primary = s3
		mux.S3 = s3
	}
	return mux, nil
}
