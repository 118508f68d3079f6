// Package ingest registers menu images dropped into the upload directory so
// they can be annotated without going through the HTTP upload endpoint.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"menuprice/pkg/imagestore"
	"menuprice/pkg/menuimage"
)

// Stats counts what a scan did.
type Stats struct {
	Registered int64
	Skipped    int64
	Failed     int64
}

type Ingester struct {
	Dir        string
	URLPrefix  string
	Images     menuimage.Repo
	UploadedBy string
	Workers    int
	MaxBytes   int64
	// Settle is how long a file must stay quiet before it is picked up in watch mode.
	Settle time.Duration
	Logger *slog.Logger

	mu   sync.RWMutex
	seen map[string]bool
}

func New(dir string, images menuimage.Repo, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		Dir:       dir,
		URLPrefix: "/uploads",
		Images:    images,
		Workers:   runtime.NumCPU(),
		MaxBytes:  10 << 20,
		Settle:    300 * time.Millisecond,
		Logger:    logger,
		seen:      make(map[string]bool, 1024),
	}
}

// IsSupported reports whether name looks like a menu image.
func IsSupported(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// ListImageFiles returns the supported file names directly inside dir, sorted.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (in *Ingester) workers() int {
	if in.Workers <= 0 {
		return runtime.NumCPU()
	}
	return in.Workers
}

func (in *Ingester) markSeen(name string) {
	in.mu.Lock()
	in.seen[name] = true
	in.mu.Unlock()
}

func (in *Ingester) wasSeen(name string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.seen[name]
}

// Scan registers every image currently in Dir.
func (in *Ingester) Scan(ctx context.Context) (Stats, error) {
	files, err := ListImageFiles(in.Dir)
	if err != nil {
		return Stats{}, fmt.Errorf("list %s: %w", in.Dir, err)
	}
	in.Logger.Info("scanning", "dir", in.Dir, "files", len(files), "workers", in.workers())
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, f := range files {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return in.run(ctx, ch), ctx.Err()
}

// run drains names with a fixed pool of workers until names is closed.
func (in *Ingester) run(ctx context.Context, names <-chan string) Stats {
	var st Stats
	var wg sync.WaitGroup
	for i := 0; i < in.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				registered, err := in.processFile(ctx, name)
				switch {
				case err != nil:
					atomic.AddInt64(&st.Failed, 1)
					in.Logger.Warn("ingest failed", "file", name, "err", err)
				case registered:
					atomic.AddInt64(&st.Registered, 1)
				default:
					atomic.AddInt64(&st.Skipped, 1)
				}
			}
		}()
	}
	wg.Wait()
	return st
}

func (in *Ingester) processFile(ctx context.Context, name string) (bool, error) {
	if in.wasSeen(name) {
		in.Logger.Debug("skip seen", "file", name)
		return false, nil
	}
	ref := in.URLPrefix + "/" + name
	if _, err := in.Images.GetByURL(ctx, ref); err == nil {
		in.markSeen(name)
		return false, nil
	} else if !errors.Is(err, menuimage.ErrNotFound) {
		return false, err
	}

	path := filepath.Join(in.Dir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if in.MaxBytes > 0 && fi.Size() > in.MaxBytes {
		in.markSeen(name)
		return false, fmt.Errorf("%w: %d bytes", imagestore.ErrTooLarge, fi.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	img, err := menuimage.Register(ctx, in.Images, ref, data, in.UploadedBy)
	if err != nil {
		if errors.Is(err, imagestore.ErrUnsupportedType) {
			in.markSeen(name)
		}
		return false, err
	}
	in.markSeen(name)
	in.Logger.Info("registered", "file", name, "id", img.ID, "width", img.Width, "height", img.Height)
	return true, nil
}

// Watch registers images as they appear in Dir until ctx is done. Files are
// picked up once they have not changed for Settle.
func (in *Ingester) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(in.Dir); err != nil {
		return err
	}
	in.Logger.Info("watching", "dir", in.Dir, "settle", in.Settle)

	names := make(chan string, 256)
	done := make(chan Stats, 1)
	go func() { done <- in.run(ctx, names) }()

	tick := in.Settle / 2
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	var watchErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-w.Events:
			if !ok {
				break loop
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if IsSupported(name) {
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) >= in.Settle {
					delete(pending, name)
					select {
					case names <- name:
					case <-ctx.Done():
						break loop
					}
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				break loop
			}
			in.Logger.Warn("watch error", "err", err)
			watchErr = err
		}
	}
	close(names)
	st := <-done
	in.Logger.Info("watch stopped", "registered", st.Registered, "skipped", st.Skipped, "failed", st.Failed)
	if ctx.Err() != nil {
		return nil
	}
	return watchErr
}
