// Package config loads service settings from an optional YAML file, a local
// .env file and the environment, in increasing order of precedence.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevJWTSecret is used when JWT_SECRET is unset. Never deploy with it.
const DevJWTSecret = "dev-insecure-secret-change"

type Config struct {
	Addr          string `yaml:"addr"`
	DBDSN         string `yaml:"db_dsn"`
	DBAutoMigrate bool   `yaml:"db_auto_migrate"`
	JWTSecret     string `yaml:"jwt_secret"`

	UploadBase     string `yaml:"upload_base"`
	StorageBackend string `yaml:"storage_backend"` // local | s3
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	S3             S3     `yaml:"s3"`

	OCREngine          string        `yaml:"ocr_engine"` // tesseract | static
	OCRLanguages       []string      `yaml:"ocr_languages"`
	RecognitionTimeout time.Duration `yaml:"recognition_timeout"`
	DedupWindow        time.Duration `yaml:"dedup_window"`
	BatchWorkers       int           `yaml:"batch_workers"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text | json
}

type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

func Default() Config {
	return Config{
		Addr:               ":8081",
		DBAutoMigrate:      true,
		UploadBase:         "uploads",
		StorageBackend:     "local",
		MaxUploadBytes:     5 << 20,
		OCREngine:          "tesseract",
		OCRLanguages:       []string{"eng"},
		RecognitionTimeout: 5 * time.Second,
		DedupWindow:        10 * time.Minute,
		BatchWorkers:       runtime.NumCPU(),
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load builds the configuration. A missing YAML file or .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
	}
	LoadDotEnv(".env")
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return errors.New("config: s3 storage needs AWS_S3_BUCKET and AWS_S3_REGION")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.OCREngine {
	case "tesseract", "static":
	default:
		return fmt.Errorf("config: unknown OCR_ENGINE %q", c.OCREngine)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.BatchWorkers <= 0 {
		return errors.New("config: BATCH_WORKERS must be positive")
	}
	return nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("DB_DSN", &c.DBDSN)
	str("JWT_SECRET", &c.JWTSecret)
	str("UPLOAD_BASE", &c.UploadBase)
	str("STORAGE_BACKEND", &c.StorageBackend)
	str("AWS_S3_BUCKET", &c.S3.Bucket)
	str("AWS_S3_REGION", &c.S3.Region)
	str("AWS_ACCESS_KEY", &c.S3.AccessKey)
	str("AWS_SECRET_KEY", &c.S3.SecretKey)
	str("AWS_S3_ENDPOINT", &c.S3.Endpoint)
	str("OCR_ENGINE", &c.OCREngine)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		c.OCRLanguages = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' || r == ' ' })
	}
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		switch strings.ToLower(v) {
		case "false", "0", "no":
			c.DBAutoMigrate = false
		default:
			c.DBAutoMigrate = true
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	if v := os.Getenv("BATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: BATCH_WORKERS: %w", err)
		}
		c.BatchWorkers = n
	}
	for key, dst := range map[string]*time.Duration{
		"RECOGNITION_TIMEOUT": &c.RecognitionTimeout,
		"DEDUP_WINDOW":        &c.DedupWindow,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// LoadDotEnv loads key=value pairs from path into the environment without
// overwriting variables that are already set. Lines starting with # are ignored.
func LoadDotEnv(path string) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.Trim(strings.TrimSpace(line[eq+1:]), `"'`)
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
