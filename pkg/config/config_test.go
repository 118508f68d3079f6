package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"ADDR", "DB_DSN", "JWT_SECRET", "STORAGE_BACKEND", "AWS_S3_BUCKET", "AWS_S3_REGION",
		"OCR_ENGINE", "OCR_LANGUAGES", "DB_AUTO_MIGRATE", "MAX_UPLOAD_BYTES", "BATCH_WORKERS",
		"RECOGNITION_TIMEOUT", "DEDUP_WINDOW", "LOG_LEVEL", "LOG_FORMAT", "UPLOAD_BASE"} {
		t.Setenv(k, "")
	}
	// run from an empty directory so no stray .env is picked up
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	_ = os.Chdir(t.TempDir())
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.RecognitionTimeout != 5*time.Second || cfg.DedupWindow != 10*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.JWTSecret != DevJWTSecret || !cfg.DBAutoMigrate || cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "addr: \":9000\"\nrecognition_timeout: 2s\nocr_languages: [eng, ind]\nocr_engine: static\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ADDR", ":9100")
	t.Setenv("DEDUP_WINDOW", "30s")
	t.Setenv("DB_AUTO_MIGRATE", "no")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("expected env to override yaml got %s", cfg.Addr)
	}
	if cfg.RecognitionTimeout != 2*time.Second || cfg.DedupWindow != 30*time.Second {
		t.Fatalf("unexpected durations %v %v", cfg.RecognitionTimeout, cfg.DedupWindow)
	}
	if len(cfg.OCRLanguages) != 2 || cfg.OCRLanguages[1] != "ind" || cfg.OCREngine != "static" {
		t.Fatalf("unexpected ocr settings %+v", cfg)
	}
	if cfg.DBAutoMigrate {
		t.Fatalf("expected auto migrate disabled")
	}
}

func TestDotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	if err := os.WriteFile(".env", []byte("# comment\nLOG_LEVEL=debug\nexport UPLOAD_BASE=\"/srv/menus\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("UPLOAD_BASE")
	t.Setenv("LOG_FORMAT", "json")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.UploadBase != "/srv/menus" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected values %+v", cfg)
	}
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("UPLOAD_BASE")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for s3 without bucket")
	}
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("BATCH_WORKERS", "abc")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for bad BATCH_WORKERS")
	}
}
