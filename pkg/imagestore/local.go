package imagestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local keeps images in a directory served under URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
	Now       func() time.Time
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Local{Dir: dir, URLPrefix: "/uploads", Now: time.Now}, nil
}

func (l *Local) Put(_ context.Context, name string, data []byte) (string, error) {
	file := ObjectName(name, l.Now())
	full := filepath.Join(l.Dir, file)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", full, err)
	}
	return l.URLPrefix + "/" + file, nil
}

// Path maps a reference to a file inside Dir. References may not escape Dir.
func (l *Local) Path(ref string) (string, error) {
	rel := strings.TrimPrefix(ref, l.URLPrefix+"/")
	rel = filepath.Clean("/" + rel)[1:]
	if rel == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return filepath.Join(l.Dir, rel), nil
}

func (l *Local) Open(_ context.Context, ref string) ([]byte, error) {
	p, err := l.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return data, err
}
