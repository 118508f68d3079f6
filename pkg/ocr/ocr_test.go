package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"menuprice/pkg/money"
	"menuprice/pkg/region"
)

type memSource map[string][]byte

func (m memSource) Open(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newAdapter(t *testing.T, eng Engine) *Adapter {
	return &Adapter{
		Engine:  eng,
		Images:  memSource{"menu.png": pngFixture(t, 200, 100)},
		Timeout: time.Second,
		Logger:  quietLogger(),
	}
}

var priceRect = region.Rect{X: 10, Y: 10, Width: 50, Height: 20}

func TestAdapterReturnsNormalizedTokens(t *testing.T) {
	eng := NewStaticEngine()
	eng.Set(priceRect,
		Token{Text: "$8.00", Confidence: 0.9},
		Token{Text: "$9.00", Confidence: 1.4},
		Token{Text: "$8.00", Confidence: 0.95},
	)
	toks, err := newAdapter(t, eng).Recognize(context.Background(), "menu.png", priceRect)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens got %+v", toks)
	}
	if toks[0].Text != "$9.00" || toks[0].Confidence != 1 {
		t.Fatalf("expected clamped $9.00 first got %+v", toks[0])
	}
	if toks[1].Text != "$8.00" || toks[1].Confidence != 0.95 || toks[1].Price == nil {
		t.Fatalf("expected merged $8.00 with max confidence got %+v", toks[1])
	}
}

func TestAdapterEmptyRegion(t *testing.T) {
	toks, err := newAdapter(t, NewStaticEngine()).Recognize(context.Background(), "menu.png", priceRect)
	if err != nil || len(toks) != 0 {
		t.Fatalf("expected no tokens and no error got %+v %v", toks, err)
	}
}

func TestAdapterTimeoutYieldsEmpty(t *testing.T) {
	eng := NewStaticEngine()
	eng.Default = []Token{{Text: "$1.00", Confidence: 0.9}}
	eng.Delay = 500 * time.Millisecond
	a := newAdapter(t, eng)
	a.Timeout = 20 * time.Millisecond
	start := time.Now()
	toks, err := a.Recognize(context.Background(), "menu.png", priceRect)
	if err != nil || toks != nil {
		t.Fatalf("expected empty result on timeout got %+v %v", toks, err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("expected adapter to give up at the timeout")
	}
}

func TestAdapterEngineErrorYieldsEmpty(t *testing.T) {
	eng := NewStaticEngine()
	eng.Err = errors.New("engine crashed")
	toks, err := newAdapter(t, eng).Recognize(context.Background(), "menu.png", priceRect)
	if err != nil || toks != nil {
		t.Fatalf("expected empty result on engine failure got %+v %v", toks, err)
	}
}

func TestAdapterMissingImageYieldsEmpty(t *testing.T) {
	toks, err := newAdapter(t, NewStaticEngine()).Recognize(context.Background(), "gone.png", priceRect)
	if err != nil || toks != nil {
		t.Fatalf("expected empty result for missing image got %+v %v", toks, err)
	}
}

func TestAdapterRejectsInvalidGeometry(t *testing.T) {
	a := newAdapter(t, NewStaticEngine())
	for _, r := range []region.Rect{
		{X: 0, Y: 0, Width: 0, Height: 10},
		{X: -1, Y: 0, Width: 10, Height: 10},
		{X: 190, Y: 0, Width: 20, Height: 10},
		{X: 0, Y: 95, Width: 10, Height: 10},
	} {
		if _, err := a.Recognize(context.Background(), "menu.png", r); !errors.Is(err, region.ErrInvalidGeometry) {
			t.Fatalf("expected ErrInvalidGeometry for %+v got %v", r, err)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("x", []byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
	img, err := Decode("ok", pngFixture(t, 30, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 30 || img.Height != 20 {
		t.Fatalf("expected 30x20 got %dx%d", img.Width, img.Height)
	}
}

func TestNormalize(t *testing.T) {
	preset := money.Amount{Minor: 100, Currency: "$"}
	toks := Normalize([]Token{
		{Text: "", Confidence: 1},
		{Text: "b", Confidence: 0.5},
		{Text: "a", Confidence: 0.5},
		{Text: "$1", Price: &preset, Confidence: -3},
		{Text: "7.25", Confidence: 0.6},
	})
	want := []string{"7.25", "a", "b", "$1"}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens got %+v", len(want), toks)
	}
	for i, w := range want {
		if toks[i].Text != w {
			t.Fatalf("position %d: expected %q got %q", i, w, toks[i].Text)
		}
	}
	if toks[0].Price == nil || toks[0].Price.Minor != 725 {
		t.Fatalf("expected parsed price for 7.25 got %+v", toks[0])
	}
	if toks[3].Confidence != 0 {
		t.Fatalf("expected clamped confidence 0 got %v", toks[3].Confidence)
	}
}
