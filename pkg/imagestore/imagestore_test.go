package imagestore

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(4, 4, color.NRGBA{0, 0, 0, 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cases := map[string]string{
		"menu.png":             "1700000000123-menu.png",
		"My Menu (1).jpg":      "1700000000123-My_Menu__1_.jpg",
		"../../etc/passwd":     "1700000000123-passwd",
		`C:\photos\carte.webp`: "1700000000123-carte.webp",
		"...":                  "1700000000123-image",
	}
	for in, want := range cases {
		if got := ObjectName(in, now); got != want {
			t.Fatalf("ObjectName(%q): expected %q got %q", in, want, got)
		}
	}
}

func TestDetectImageType(t *testing.T) {
	ct, err := DetectImageType(pngBytes(t))
	if err != nil || ct != "image/png" {
		t.Fatalf("expected image/png got %q %v", ct, err)
	}
	if _, err := DetectImageType([]byte("%PDF-1.4 not an image")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType got %v", err)
	}
}

func TestLocalPutOpen(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	l.Now = func() time.Time { return time.UnixMilli(42) }
	data := pngBytes(t)
	ref, err := l.Put(context.Background(), "menu.png", data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ref != "/uploads/42-menu.png" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if _, err := os.Stat(filepath.Join(dir, "42-menu.png")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	got, err := l.Open(context.Background(), ref)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("expected same bytes back, err=%v", err)
	}
	if _, err := l.Open(context.Background(), "/uploads/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestLocalPathStaysInsideDir(t *testing.T) {
	l := &Local{Dir: "/srv/uploads", URLPrefix: "/uploads"}
	p, err := l.Path("/uploads/../../etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(p, "/srv/uploads/") {
		t.Fatalf("expected path inside upload dir got %s", p)
	}
}

func TestMuxRoutesByReference(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/menu.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	local, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	m := &Mux{Primary: local, Local: local, HTTP: NewHTTPFetcher(1 << 20)}
	ctx := context.Background()

	ref, err := m.Put(ctx, "a.png", data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if got, err := m.Open(ctx, ref); err != nil || !bytes.Equal(got, data) {
		t.Fatalf("local open failed: %v", err)
	}
	if got, err := m.Open(ctx, srv.URL+"/menu.png"); err != nil || !bytes.Equal(got, data) {
		t.Fatalf("http open failed: %v", err)
	}
	if _, err := m.Open(ctx, srv.URL+"/gone.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for 404 got %v", err)
	}
	if _, err := m.Open(ctx, "s3://bucket/key.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without s3 backend got %v", err)
	}

	m.HTTP.MaxBytes = 10
	if _, err := m.Open(ctx, srv.URL+"/menu.png"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge got %v", err)
	}
}

func TestS3KeyFromLink(t *testing.T) {
	s := &S3{bucket: "menus"}
	key, err := s.GetObjectKeyFromLink("s3://menus/menu-images/1-a.png")
	if err != nil || key != "menu-images/1-a.png" {
		t.Fatalf("expected key got %q %v", key, err)
	}
	for _, ref := range []string{"s3://other/a.png", "s3://menus/", "/uploads/a.png"} {
		if _, err := s.GetObjectKeyFromLink(ref); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q got %v", ref, err)
		}
	}
}
