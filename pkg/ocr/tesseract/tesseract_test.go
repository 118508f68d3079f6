package tesseract

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"menuprice/pkg/region"
)

func TestSplitLines(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Word: "Soup", Confidence: 90, BlockNum: 1, ParNum: 1, LineNum: 1},
		{Word: "$", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1},
		{Word: "4.50", Confidence: 70, BlockNum: 1, ParNum: 1, LineNum: 1},
		{Word: "Tea", Confidence: 90, BlockNum: 1, ParNum: 1, LineNum: 2},
		{Word: "2.00", Confidence: 60, BlockNum: 1, ParNum: 1, LineNum: 2},
	}
	lines := splitLines(boxes)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines got %d", len(lines))
	}
	if len(lines[0]) != 3 || lines[0][2].Text != "4.50" {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[1][1].Confidence != 0.6 {
		t.Fatalf("expected confidence scaled to 0.6 got %v", lines[1][1].Confidence)
	}
	if got := lineText(boxes); got != "Soup $ 4.50\nTea 2.00" {
		t.Fatalf("unexpected line text %q", got)
	}
}

func TestRecognizeEmptyCrop(t *testing.T) {
	img := imaging.New(50, 50, color.NRGBA{255, 255, 255, 255})
	_, err := New().Recognize(context.Background(), img, region.Rect{X: 60, Y: 60, Width: 10, Height: 10})
	if !errors.Is(err, ErrEmptyCrop) {
		t.Fatalf("expected ErrEmptyCrop got %v", err)
	}
}

func TestRecognizeBlankRegionHasNoPrices(t *testing.T) {
	img := imaging.New(400, 200, color.NRGBA{255, 255, 255, 255})
	toks, err := New().Recognize(context.Background(), img, region.Rect{X: 10, Y: 10, Width: 200, Height: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tok := range toks {
		if tok.Price != nil {
			t.Fatalf("expected no priced tokens on a blank image got %+v", tok)
		}
	}
}

func TestVariantsUpscaleSmallCrops(t *testing.T) {
	crop := imaging.New(40, 12, color.NRGBA{200, 200, 200, 255})
	vs := variants(crop, 96)
	if len(vs) != 3 {
		t.Fatalf("expected 3 variants got %d", len(vs))
	}
	for _, v := range vs {
		if v.Bounds().Dy() != 96+16 {
			t.Fatalf("expected padded height %d got %d", 96+16, v.Bounds().Dy())
		}
	}
}

func TestAdaptiveThresholdMarksDarkText(t *testing.T) {
	img := imaging.New(30, 30, color.NRGBA{255, 255, 255, 255})
	for y := 12; y < 18; y++ {
		for x := 12; x < 18; x++ {
			img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	out := adaptiveThreshold(img, 15, 7)
	if c := out.NRGBAAt(14, 14); c.R != 0 {
		t.Fatalf("expected dark pixel to stay black got %+v", c)
	}
	if c := out.NRGBAAt(2, 2); c.R != 255 {
		t.Fatalf("expected background to stay white got %+v", c)
	}
}
