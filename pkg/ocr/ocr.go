// Package ocr recognizes price-like tokens inside rectangular regions of a
// menu image. Engines are swappable; the Adapter enforces the contract that
// valid regions never fail: missing images, engine errors and timeouts all
// degrade to an empty token list.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"menuprice/pkg/money"
	"menuprice/pkg/region"
)

// Token is one price-like string recognized inside a region. Price is nil
// when the text does not parse as a currency amount.
type Token struct {
	Text       string        `json:"text"`
	Price      *money.Amount `json:"price,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Engine is a black-box OCR capability. Implementations must not retain img.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, r region.Rect) ([]Token, error)
}

// ImageSource fetches raw image bytes for a reference.
type ImageSource interface {
	Open(ctx context.Context, ref string) ([]byte, error)
}

// Image is a decoded image ready for repeated recognition calls.
type Image struct {
	Ref    string
	Img    image.Image
	Width  int
	Height int
}

// Decode decodes PNG, JPEG, GIF or WebP bytes.
func Decode(ref string, data []byte) (*Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	b := img.Bounds()
	return &Image{Ref: ref, Img: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// Adapter wraps an Engine with geometry validation, a timeout and result
// normalization.
type Adapter struct {
	Engine  Engine
	Images  ImageSource
	Timeout time.Duration
	Logger  *slog.Logger
}

func (a *Adapter) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Load fetches and decodes an image so several regions can share it.
func (a *Adapter) Load(ctx context.Context, ref string) (*Image, error) {
	data, err := a.Images.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return Decode(ref, data)
}

// Recognize runs recognition for one region of the referenced image. The only
// error it returns is region.ErrInvalidGeometry.
func (a *Adapter) Recognize(ctx context.Context, ref string, r region.Rect) ([]Token, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	img, err := a.Load(ctx, ref)
	if err != nil {
		a.logger().Warn("ocr image unavailable", "ref", ref, "err", err)
		return nil, nil
	}
	return a.RecognizeImage(ctx, img, r)
}

type engineResult struct {
	tokens []Token
	err    error
}

// RecognizeImage is Recognize for an already loaded image.
func (a *Adapter) RecognizeImage(ctx context.Context, img *Image, r region.Rect) ([]Token, error) {
	if err := r.CheckBounds(img.Width, img.Height); err != nil {
		return nil, err
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	start := time.Now()
	// Engines backed by cgo cannot be interrupted, so the call runs in its own
	// goroutine and is abandoned when the deadline passes.
	ch := make(chan engineResult, 1)
	go func() {
		toks, err := a.Engine.Recognize(ctx, img.Img, r)
		ch <- engineResult{tokens: toks, err: err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			a.logger().Warn("ocr engine failed", "ref", img.Ref, "rect", r, "err", res.err)
			return nil, nil
		}
		toks := Normalize(res.tokens)
		a.logger().Debug("ocr recognized", "ref", img.Ref, "rect", r, "tokens", len(toks), "elapsed", time.Since(start))
		return toks, nil
	case <-ctx.Done():
		a.logger().Warn("ocr timed out", "ref", img.Ref, "rect", r, "err", ctx.Err(), "elapsed", time.Since(start))
		return nil, nil
	}
}

// Normalize clamps confidences to [0,1], fills in missing prices, merges
// duplicate texts keeping the highest confidence and sorts by descending
// confidence then text.
func Normalize(tokens []Token) []Token {
	byText := make(map[string]int, len(tokens))
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Text == "" {
			continue
		}
		t.Confidence = clamp01(t.Confidence)
		if t.Price == nil {
			if amt, err := money.Parse(t.Text); err == nil {
				t.Price = &amt
			}
		}
		if i, ok := byText[t.Text]; ok {
			if t.Confidence > out[i].Confidence {
				out[i].Confidence = t.Confidence
			}
			continue
		}
		byText[t.Text] = len(out)
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Text < out[j].Text
	})
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
