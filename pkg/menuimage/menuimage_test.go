package menuimage

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"menuprice/pkg/imagestore"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(w, h, color.NRGBA{255, 255, 255, 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRegisterDecodesDimensions(t *testing.T) {
	repo := NewMemoryRepo()
	img, err := Register(context.Background(), repo, "/uploads/1-menu.png", pngBytes(t, 640, 480), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 640 || img.Height != 480 || img.ContentType != "image/png" || img.UploadedBy != "alice" {
		t.Fatalf("unexpected image %+v", img)
	}
	w, h, err := repo.Bounds(context.Background(), img.ID)
	if err != nil || w != 640 || h != 480 {
		t.Fatalf("expected bounds 640x480 got %dx%d %v", w, h, err)
	}
}

func TestRegisterIsIdempotentOnURL(t *testing.T) {
	repo := NewMemoryRepo()
	data := pngBytes(t, 10, 10)
	a, _ := Register(context.Background(), repo, "/uploads/a.png", data, "")
	b, err := Register(context.Background(), repo, "/uploads/a.png", data, "")
	if err != nil || a.ID != b.ID {
		t.Fatalf("expected same image got %s and %s (%v)", a.ID, b.ID, err)
	}
}

func TestRegisterRejectsNonImages(t *testing.T) {
	_, err := Register(context.Background(), NewMemoryRepo(), "/uploads/a.txt", []byte("hello"), "")
	if !errors.Is(err, imagestore.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType got %v", err)
	}
}

func TestSetProcessedURL(t *testing.T) {
	repo := NewMemoryRepo()
	img, _ := Register(context.Background(), repo, "/uploads/a.png", pngBytes(t, 10, 10), "")
	got, err := repo.SetProcessedURL(context.Background(), img.ID, "/uploads/a.processed.png")
	if err != nil || got.ProcessedImageURL == nil || *got.ProcessedImageURL != "/uploads/a.processed.png" {
		t.Fatalf("unexpected result %+v %v", got, err)
	}
	if _, err := repo.SetProcessedURL(context.Background(), uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}
