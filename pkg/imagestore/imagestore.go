// Package imagestore stores uploaded menu images and fetches image bytes by
// reference. References are "/uploads/<file>" for the local directory,
// "s3://bucket/key" for S3, or plain http(s) URLs registered by clients.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotFound        = errors.New("image not found")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

// AllowImage lists the content types accepted for upload.
var AllowImage = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

type Store interface {
	// Put stores data under a name derived from name and returns its reference.
	Put(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
}

// DetectImageType sniffs data and returns its content type, or
// ErrUnsupportedType when it is not one of AllowImage.
func DetectImageType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	for _, allowed := range AllowImage {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-]`)

// ObjectName returns a collision-resistant file name: the millisecond
// timestamp followed by the sanitized original name.
func ObjectName(name string, now time.Time) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), name)
}

// Mux writes to a primary store and reads from whichever backend a
// reference belongs to.
type Mux struct {
	Primary Store
	Local   *Local
	S3      *S3
	HTTP    *HTTPFetcher
}

func (m *Mux) Put(ctx context.Context, name string, data []byte) (string, error) {
	return m.Primary.Put(ctx, name, data)
}

func (m *Mux) Open(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		if m.S3 == nil {
			return nil, fmt.Errorf("%w: no s3 backend for %s", ErrNotFound, ref)
		}
		return m.S3.Open(ctx, ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if m.HTTP == nil {
			return nil, fmt.Errorf("%w: remote images disabled for %s", ErrNotFound, ref)
		}
		return m.HTTP.Open(ctx, ref)
	default:
		if m.Local == nil {
			return nil, fmt.Errorf("%w: no local backend for %s", ErrNotFound, ref)
		}
		return m.Local.Open(ctx, ref)
	}
}
