package ocr

import (
	"context"
	"image"
	"sync"
	"time"

	"menuprice/pkg/region"
)

// StaticEngine returns preset tokens per rectangle. It is deterministic and
// is used in tests and when no OCR engine is installed.
type StaticEngine struct {
	mu      sync.RWMutex
	byRect  map[region.Rect][]Token
	Default []Token
	// Delay simulates a slow engine; the context still cancels it.
	Delay time.Duration
	// Err, when set, is returned for every call.
	Err error
}

func NewStaticEngine() *StaticEngine {
	return &StaticEngine{byRect: make(map[region.Rect][]Token)}
}

// Set registers the tokens returned for rectangle r.
func (e *StaticEngine) Set(r region.Rect, tokens ...Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byRect[r] = append([]Token(nil), tokens...)
}

func (e *StaticEngine) Recognize(ctx context.Context, _ image.Image, r region.Rect) ([]Token, error) {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.Err != nil {
		return nil, e.Err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if toks, ok := e.byRect[r]; ok {
		return append([]Token(nil), toks...), nil
	}
	return append([]Token(nil), e.Default...), nil
}
