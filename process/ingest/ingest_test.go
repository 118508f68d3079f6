package ingest

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"menuprice/pkg/menuimage"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(w, h, color.NRGBA{255, 255, 255, 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestIngester(dir string) (*Ingester, *menuimage.MemoryRepo) {
	repo := menuimage.NewMemoryRepo()
	in := New(dir, repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	in.Workers = 2
	in.Settle = 50 * time.Millisecond
	in.UploadedBy = "ingest"
	return in, repo
}

func TestIsSupported(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"menu.png", true},
		{"MENU.JPG", true},
		{"menu.webp", true},
		{"notes.txt", false},
		{".hidden.png", false},
		{"menu", false},
	}
	for _, c := range cases {
		if got := IsSupported(c.name); got != c.want {
			t.Fatalf("IsSupported(%q): expected %v got %v", c.name, c.want, got)
		}
	}
}

func TestScanRegistersImagesOnce(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 320, 200)
	writePNG(t, filepath.Join(dir, "b.png"), 640, 480)
	_ = os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "fake.png"), []byte("not an image"), 0o644)

	in, repo := newTestIngester(dir)
	st, err := in.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if st.Registered != 2 || st.Failed != 1 {
		t.Fatalf("expected 2 registered and 1 failed got %+v", st)
	}
	img, err := repo.GetByURL(context.Background(), "/uploads/b.png")
	if err != nil {
		t.Fatalf("expected b.png registered: %v", err)
	}
	if img.Width != 640 || img.Height != 480 || img.UploadedBy != "ingest" {
		t.Fatalf("unexpected image %+v", img)
	}

	st, err = in.Scan(context.Background())
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if st.Registered != 0 || st.Skipped != 3 {
		t.Fatalf("expected rescan to skip everything got %+v", st)
	}
}

func TestScanSkipsImagesKnownToRepo(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 100, 100)
	in, repo := newTestIngester(dir)
	if _, err := menuimage.Register(context.Background(), repo, "/uploads/a.png", mustRead(t, filepath.Join(dir, "a.png")), "web"); err != nil {
		t.Fatalf("register: %v", err)
	}
	st, _ := in.Scan(context.Background())
	if st.Registered != 0 || st.Skipped != 1 {
		t.Fatalf("expected existing image skipped got %+v", st)
	}
}

func TestScanRejectsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "big.png"), 400, 400)
	in, _ := newTestIngester(dir)
	in.MaxBytes = 10
	st, _ := in.Scan(context.Background())
	if st.Failed != 1 {
		t.Fatalf("expected oversized file to fail got %+v", st)
	}
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	in, repo := newTestIngester(dir)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- in.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writePNG(t, filepath.Join(dir, "late.png"), 200, 100)

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := repo.GetByURL(context.Background(), "/uploads/late.png"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("expected late.png to be registered by the watcher")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("expected clean shutdown got %v", err)
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}
